package cli

import (
	"bufio"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/pph/pkg/config"
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	configPath string
	dbPath     string
	verbose    bool
	jsonOut    bool
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger

	// in buffers stdin when it is not a terminal, so consecutive prompts
	// read consecutive lines.
	in *bufio.Reader

	// passphrase of a sealed database, reused when storing it again
	passphrase []byte
}

// NewRootCommand builds the pph command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "pph",
		Short: "PolyPasswordHasher password database",
		Long: `pph manages a PolyPasswordHasher password database.

Protector accounts hold shares of a database secret masked with the hash of
their password. The secret never touches the disk: after loading, the
database stays locked until enough protector passwords are supplied. A
stolen database file cannot be cracked one password at a time.

Features:
- Threshold (protector) and shielded accounts
- Isolated check bytes for logins while the database is locked
- Optional passphrase-sealed database files (argon2id + AES-GCM)
- GF(256) polynomial tools and Vault-compatible secret splitting`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $PPH_CONFIG or ~/.config/pph/config.json)")
	rootCmd.PersistentFlags().StringVarP(&a.dbPath, "db", "d", "", "Password database file (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&a.jsonOut, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newInitCommand(a),
		newAccountCommand(a),
		newLoginCommand(a),
		newUnlockCommand(a),
		newInfoCommand(a),
		newPolyCommand(a),
		newSplitCommand(a),
		newCombineCommand(a),
	)

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	var (
		cm  *config.ConfigManager
		err error
	)
	if a.configPath != "" {
		cm, err = config.NewConfigManagerAt(a.configPath)
	} else {
		cm, err = config.NewConfigManager()
	}
	if err != nil {
		return err
	}
	a.cfg = cm.GetConfig()

	if a.noColor || !a.cfg.UI.UseColor {
		color.NoColor = true
	}

	level := slog.LevelWarn
	if a.verbose || a.cfg.UI.Verbosity == "verbose" {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))

	a.logger.Debug("configuration loaded", "path", cm.Path())
	return nil
}
