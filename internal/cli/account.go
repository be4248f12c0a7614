package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/pph/internal/validation"
	"github.com/Davincible/pph/pkg/crypto/mnemonic"
	"github.com/Davincible/pph/pkg/pph"
)

type AccountResult struct {
	Username string          `json:"username"`
	Kind     pph.AccountKind `json:"kind"`
	Shares   int             `json:"shares"`
	Password string          `json:"password,omitempty"`
}

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	cmd.AddCommand(
		newAccountAddCommand(a),
		newAccountListCommand(a),
	)

	return cmd
}

func newAccountAddCommand(a *app) *cobra.Command {
	var (
		shares   int
		generate bool
		words    int
		unlock   []string
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Add an account to the database",
		Long: `Add a protector account (--shares > 0) or a shielded account (the
default). The database secret is needed to add accounts, so a reloaded
database must be unlocked in the same invocation with --unlock.`,
		Example: `  # Shielded account, unlocked by two protectors
  pph account add dave --unlock alice --unlock bob

  # New protector holding two shares, with a generated password
  pph account add erin --shares 2 --generate --unlock alice --unlock bob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.wipe()

			username := args[0]
			if err := validation.ValidateUsername(username); err != nil {
				return err
			}
			if shares < 0 {
				return fmt.Errorf("--shares cannot be negative (got %d)", shares)
			}
			if !cmd.Flags().Changed("words") {
				words = a.cfg.Defaults.PasswordWords
			}
			if generate {
				if err := validation.ValidateWordCount(words); err != nil {
					return err
				}
			}

			ctx, fs, err := a.loadDatabase(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			if err := a.unlockWith(cmd, ctx, unlock); err != nil {
				return err
			}

			var password string
			if generate {
				m, err := mnemonic.NewPassword(words)
				if err != nil {
					return fmt.Errorf("failed to generate password: %w", err)
				}
				password = m.Words()
			} else {
				password, err = a.readNewPassword(cmd, username)
				if err != nil {
					return err
				}
			}

			if err := ctx.CreateAccount(username, password, shares); err != nil {
				return err
			}
			if err := a.saveDatabase(ctx, fs); err != nil {
				return err
			}

			result := AccountResult{
				Username: username,
				Kind:     pph.KindShielded,
				Shares:   shares,
			}
			if shares > 0 {
				result.Kind = pph.KindThreshold
			}
			if generate {
				result.Password = password
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			w := cmd.OutOrStdout()
			printSuccess(w, "Added %s account %s", result.Kind, username)
			if generate {
				cyan := color.New(color.FgCyan, color.Bold)
				cyan.Fprint(w, "Password: ")
				fmt.Fprintln(w, password)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&shares, "shares", 0, "Shares held by the account (0 creates a shielded account)")
	cmd.Flags().BoolVar(&generate, "generate", false, "Generate a BIP39 word password")
	cmd.Flags().IntVarP(&words, "words", "w", 12, "Words in a generated password (12, 15, 18, 21 or 24)")
	cmd.Flags().StringArrayVar(&unlock, "unlock", nil, "Protector account used to unlock the database (repeatable)")

	return cmd
}

func newAccountListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.wipe()

			ctx, _, err := a.loadDatabase(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			accounts := ctx.Accounts()
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), accounts)
			}

			w := cmd.OutOrStdout()
			for _, acc := range accounts {
				fmt.Fprintf(w, "%-24s %-10s %d\n", acc.Username, acc.Kind, acc.Shares)
			}
			return nil
		},
	}
}
