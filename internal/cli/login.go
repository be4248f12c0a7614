package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Davincible/pph/pkg/pph"
)

type LoginResult struct {
	Username string `json:"username"`
	Valid    bool   `json:"valid"`
	// Partial is set when only the isolated check bytes were compared.
	Partial bool `json:"partial"`
}

func newLoginCommand(a *app) *cobra.Command {
	var unlock []string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Check an account password",
		Long: `Check an account password against the database.

A locked database can only compare the isolated check bytes, which accepts
a wrong password with small probability. Pass --unlock to verify against the
full hash.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.wipe()

			ctx, _, err := a.loadDatabase(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			if len(unlock) > 0 {
				if err := a.unlockWith(cmd, ctx, unlock); err != nil {
					return err
				}
			}

			password, err := a.readPassword(cmd, fmt.Sprintf("Password for %s: ", args[0]))
			if err != nil {
				return err
			}

			result := LoginResult{Username: args[0], Partial: ctx.Locked()}

			err = ctx.CheckLogin(args[0], password)
			switch {
			case err == nil:
				result.Valid = true
			case errors.Is(err, pph.ErrLoginFailed):
			case errors.Is(err, pph.ErrContextLocked):
				return fmt.Errorf("%w: no isolated check bytes, pass --unlock", err)
			default:
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			if !result.Valid {
				return err
			}

			printSuccess(cmd.OutOrStdout(), "Password accepted for %s", result.Username)
			if result.Partial {
				fmt.Fprintln(cmd.OutOrStdout(), "Note: database is locked, only the isolated check bytes were compared")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&unlock, "unlock", nil, "Protector account used to unlock the database (repeatable)")

	return cmd
}

func newUnlockCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <protector>...",
		Short: "Check that protector passwords unlock the database",
		Long: `Reconstruct the database secret from protector passwords.

The secret is only held in memory, so this verifies that the given
protectors can still unlock the database.`,
		Example: `  pph unlock alice bob`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.wipe()

			ctx, _, err := a.loadDatabase(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			if err := a.unlockWith(cmd, ctx, args); err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"unlocked":   true,
					"protectors": args,
				})
			}
			printSuccess(cmd.OutOrStdout(), "Database unlocked by %d protector(s)", len(args))
			return nil
		},
	}
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show database parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.wipe()

			ctx, fs, err := a.loadDatabase(cmd)
			if err != nil {
				return err
			}
			defer ctx.Close()

			info := ctx.Info()
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"path":                fs.Path(),
					"sealed":              len(a.passphrase) > 0,
					"threshold":           info.Threshold,
					"isolated_check_bits": info.CheckBits,
					"iterations":          info.Iterations,
					"accounts":            ctx.Accounts(),
					"next_share_index":    info.NextShareIndex,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Database:             %s\n", fs.Path())
			fmt.Fprintf(w, "Sealed:               %t\n", len(a.passphrase) > 0)
			fmt.Fprintf(w, "Threshold:            %d\n", info.Threshold)
			fmt.Fprintf(w, "Isolated check bytes: %d\n", info.CheckBits)
			fmt.Fprintf(w, "PBKDF2 iterations:    %d\n", info.Iterations)
			fmt.Fprintf(w, "Accounts:             %d\n", info.Accounts)
			fmt.Fprintf(w, "Shares left:          %d\n", pph.MaxShareIndex-info.NextShareIndex+1)
			return nil
		},
	}
}
