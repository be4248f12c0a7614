package cli

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/pph/internal/validation"
	"github.com/Davincible/pph/pkg/crypto/shamir"
	"github.com/Davincible/pph/pkg/secure"
)

type CombineResult struct {
	Hex  string `json:"hex"`
	Text string `json:"text,omitempty"`
}

func newCombineCommand(a *app) *cobra.Command {
	var inputFile string

	cmd := &cobra.Command{
		Use:   "combine [share-hex]...",
		Short: "Combine shares to recover a secret",
		Long: `Combine shares produced by 'pph split' (or HashiCorp Vault) to recover
the original secret. Shares are given as hex arguments or read from a file
written by 'pph split --output'.`,
		Example: `  pph combine 3f9a01 b27c02 1d4e03
  pph combine --input shares.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded := args
			if inputFile != "" {
				loaded, err := readSharesFromFile(inputFile)
				if err != nil {
					return err
				}
				encoded = append(encoded, loaded...)
			}
			if len(encoded) == 0 {
				return fmt.Errorf("no shares provided")
			}

			shares := make([]shamir.Share, 0, len(encoded))
			for i, s := range encoded {
				if err := validation.ValidateShare(s); err != nil {
					return fmt.Errorf("share %d: %w", i+1, err)
				}
				raw, _ := hex.DecodeString(strings.TrimSpace(s))
				share, err := shamir.ParseTagged(raw)
				if err != nil {
					return fmt.Errorf("share %d: %w", i+1, err)
				}
				shares = append(shares, share)
			}

			secret, err := shamir.Combine(shares)
			if err != nil {
				return fmt.Errorf("failed to combine shares: %w", err)
			}
			defer secure.Zero(secret)

			result := CombineResult{Hex: hex.EncodeToString(secret)}
			if utf8.Valid(secret) {
				result.Text = string(secret)
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			w := cmd.OutOrStdout()
			green := color.New(color.FgGreen, color.Bold)
			cyan := color.New(color.FgCyan, color.Bold)

			green.Fprintf(w, "✓ Combined %d shares\n", len(shares))
			cyan.Fprint(w, "Hex:  ")
			fmt.Fprintln(w, result.Hex)
			if result.Text != "" {
				cyan.Fprint(w, "Text: ")
				fmt.Fprintln(w, result.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Read shares from a JSON file written by split")

	return cmd
}

func readSharesFromFile(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var result SplitResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse shares file: %w", err)
	}

	out := make([]string, 0, len(result.Shares))
	for _, s := range result.Shares {
		switch {
		case s.Hex != "":
			out = append(out, s.Hex)
		case s.Base64 != "":
			raw, err := base64.StdEncoding.DecodeString(s.Base64)
			if err != nil {
				return nil, fmt.Errorf("invalid base64 share: %w", err)
			}
			out = append(out, hex.EncodeToString(raw))
		}
	}
	return out, nil
}
