package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Davincible/pph/internal/validation"
	"github.com/Davincible/pph/pkg/pph"
)

type InitResult struct {
	Path       string   `json:"path"`
	Threshold  int      `json:"threshold"`
	CheckBits  int      `json:"isolated_check_bits"`
	Iterations int      `json:"iterations"`
	Protectors []string `json:"protectors"`
	Sealed     bool     `json:"sealed"`
}

func newInitCommand(a *app) *cobra.Command {
	var (
		threshold  int
		checkBits  int
		iterations int
		admins     []string
		shares     int
		seal       bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new password database",
		Long: `Create a new password database with a fresh secret and its first
protector accounts.

The secret is split so that the passwords of protector accounts holding at
least threshold shares are needed to unlock the database after it has been
reloaded. The protectors created here must hold enough shares between them.`,
		Example: `  # Three admins, any two unlock the database
  pph init --threshold 2 --admin alice --admin bob --admin carol

  # Keep 4 hash bytes in clear so logins work while locked
  pph init --threshold 2 --check-bits 4 --admin alice --admin bob

  # Encrypt the database file with a passphrase
  pph init --threshold 1 --admin root --seal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.wipe()

			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Defaults.Threshold
			}
			if !cmd.Flags().Changed("check-bits") {
				checkBits = a.cfg.Defaults.IsolatedCheckBits
			}
			if !cmd.Flags().Changed("iterations") {
				iterations = a.cfg.Defaults.Iterations
			}
			seal = seal || a.cfg.Security.SealDatabase

			if err := validation.ValidateThresholdParams(threshold, checkBits); err != nil {
				return err
			}
			if iterations < 1 || iterations > pph.MaxIterations {
				return fmt.Errorf("iterations must be between 1 and %d (got %d)", pph.MaxIterations, iterations)
			}
			if len(admins) == 0 {
				return fmt.Errorf("at least one --admin protector account is required")
			}
			if shares < 1 {
				return fmt.Errorf("--shares must be at least 1 (got %d)", shares)
			}
			if len(admins)*shares < threshold {
				return fmt.Errorf("%d protector(s) with %d share(s) each cannot reach threshold %d",
					len(admins), shares, threshold)
			}
			for _, admin := range admins {
				if err := validation.ValidateUsername(admin); err != nil {
					return fmt.Errorf("invalid admin %q: %w", admin, err)
				}
			}

			fs, err := a.databaseStorage()
			if err != nil {
				return err
			}
			if fs.Exists() && !force {
				return fmt.Errorf("database %s already exists (use --force to overwrite)", fs.Path())
			}

			if seal {
				passphrase, err := a.readPassword(cmd, "Database passphrase: ")
				if err != nil {
					return err
				}
				confirm, err := a.readPassword(cmd, "Confirm passphrase: ")
				if err != nil {
					return err
				}
				if passphrase == "" || passphrase != confirm {
					return fmt.Errorf("passphrases are empty or do not match")
				}
				a.passphrase = []byte(passphrase)
			}

			ctx, err := pph.New(threshold, checkBits,
				pph.WithIterations(iterations),
				pph.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer ctx.Close()

			for _, admin := range admins {
				password, err := a.readNewPassword(cmd, admin)
				if err != nil {
					return err
				}
				if err := ctx.CreateAccount(admin, password, shares); err != nil {
					return err
				}
			}

			if force && fs.Exists() {
				a.logger.Info("overwriting database", "path", fs.Path())
				if err := fs.Delete(); err != nil {
					return fmt.Errorf("failed to remove old database: %w", err)
				}
			}
			if err := a.saveDatabase(ctx, fs); err != nil {
				return err
			}

			result := InitResult{
				Path:       fs.Path(),
				Threshold:  threshold,
				CheckBits:  checkBits,
				Iterations: iterations,
				Protectors: admins,
				Sealed:     seal,
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			w := cmd.OutOrStdout()
			printSuccess(w, "Created password database %s", result.Path)
			fmt.Fprintf(w, "Threshold:            %d\n", threshold)
			fmt.Fprintf(w, "Isolated check bytes: %d\n", checkBits)
			fmt.Fprintf(w, "Protectors:           %s\n", strings.Join(admins, ", "))
			fmt.Fprintln(w)
			printWarning(w,
				"The database secret is not stored; keep protector passwords safe",
				fmt.Sprintf("With fewer than %d shares' passwords left the database can never be unlocked", threshold))
			return nil
		},
	}

	cmd.Flags().IntVarP(&threshold, "threshold", "t", 2, "Shares needed to unlock the database")
	cmd.Flags().IntVar(&checkBits, "check-bits", 2, "Hash bytes kept in clear for locked logins (0-16)")
	cmd.Flags().IntVar(&iterations, "iterations", pph.DefaultIterations, "PBKDF2 iterations per password hash")
	cmd.Flags().StringArrayVar(&admins, "admin", nil, "Protector account to create (repeatable)")
	cmd.Flags().IntVar(&shares, "shares", 1, "Shares held by each protector")
	cmd.Flags().BoolVar(&seal, "seal", false, "Encrypt the database file with a passphrase")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing database")

	return cmd
}
