package cli

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/pph/internal/validation"
	"github.com/Davincible/pph/pkg/crypto/shamir"
	"github.com/Davincible/pph/pkg/secure"
)

type ShareFormats struct {
	Index  int    `json:"index"`
	Hex    string `json:"hex"`
	Base64 string `json:"base64"`
}

type SplitResult struct {
	Shares    []ShareFormats `json:"shares"`
	Threshold int            `json:"threshold"`
	Total     int            `json:"total"`
}

func newSplitCommand(a *app) *cobra.Command {
	var (
		parts      int
		threshold  int
		hexInput   bool
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a secret into multiple shares",
		Long: `Split a secret into shares with Shamir's Secret Sharing over GF(256).
Any threshold shares reconstruct the secret.

Shares use the HashiCorp Vault layout: the share bytes followed by a
one-byte share index.`,
		Example: `  # Split a secret typed at the prompt into 5 shares, any 3 recover it
  pph split --parts 5 --threshold 3

  # Split hex input from stdin
  echo 00112233 | pph split --parts 3 --threshold 2 --hex`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateSplitParams(parts, threshold); err != nil {
				return err
			}

			input, err := a.readPassword(cmd, "Enter your secret: ")
			if err != nil {
				return fmt.Errorf("failed to read secret: %w", err)
			}

			var secret []byte
			if hexInput {
				if err := validation.ValidateHex(input); err != nil {
					return err
				}
				secret, _ = hex.DecodeString(strings.TrimSpace(input))
			} else {
				secret = []byte(input)
			}
			defer secure.Zero(secret)

			if len(secret) == 0 {
				return fmt.Errorf("secret cannot be empty")
			}

			shares, err := shamir.Split(secret, shamir.Config{
				Parts:     parts,
				Threshold: threshold,
			})
			if err != nil {
				return fmt.Errorf("failed to split secret: %w", err)
			}

			result := SplitResult{
				Shares:    make([]ShareFormats, len(shares)),
				Threshold: threshold,
				Total:     parts,
			}
			for i, share := range shares {
				tagged := share.Tagged()
				result.Shares[i] = ShareFormats{
					Index:  int(share.Index),
					Hex:    hex.EncodeToString(tagged),
					Base64: base64.StdEncoding.EncodeToString(tagged),
				}
				secure.Zero(share.Data)
			}

			if outputFile != "" {
				return saveToFile(cmd.OutOrStdout(), result, outputFile)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return outputTextResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVarP(&parts, "parts", "n", 5, "Total number of shares to create")
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 3, "Minimum shares needed to reconstruct")
	cmd.Flags().BoolVar(&hexInput, "hex", false, "Secret is hex encoded")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output shares to file")

	return cmd
}

func saveToFile(w io.Writer, result SplitResult, filename string) error {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := writeJSON(f, result); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Fprintf(w, "Shares saved to %s\n", filename)
	return nil
}

func outputTextResult(w io.Writer, result SplitResult) error {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)

	fmt.Fprintln(w)
	yellow.Fprintln(w, "=== SHAMIR SECRET SHARES ===")
	fmt.Fprintln(w)

	green.Fprintf(w, "Created %d shares with threshold %d\n", result.Total, result.Threshold)
	fmt.Fprintf(w, "Any %d shares can reconstruct the original secret\n\n", result.Threshold)

	printWarning(w,
		"Store each share in a different secure location",
		"Never store shares together or electronically",
		"Each share should be treated as highly sensitive")
	fmt.Fprintln(w)

	for i, share := range result.Shares {
		fmt.Fprintf(w, "Share %d of %d (index %d):\n", i+1, result.Total, share.Index)

		cyan.Fprint(w, "  Hex:    ")
		fmt.Fprintln(w, share.Hex)

		blue.Fprint(w, "  Base64: ")
		fmt.Fprintln(w, share.Base64)

		fmt.Fprintln(w)
	}

	yellow.Fprintln(w, "=== END OF SHARES ===")
	return nil
}
