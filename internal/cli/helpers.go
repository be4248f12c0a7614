package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Davincible/pph/internal/validation"
	"github.com/Davincible/pph/pkg/pph"
	"github.com/Davincible/pph/pkg/secure"
	"github.com/Davincible/pph/pkg/storage"
)

// readPassword prompts on stderr and reads a line without echo when stdin is
// a terminal.
func (a *app) readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		passBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		defer secure.Zero(passBytes)
		return string(passBytes), nil
	}

	// Fallback for non-terminal
	if a.in == nil {
		a.in = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readNewPassword asks for a password twice and applies the configured policy.
func (a *app) readNewPassword(cmd *cobra.Command, username string) (string, error) {
	password, err := a.readPassword(cmd, fmt.Sprintf("New password for %s: ", username))
	if err != nil {
		return "", err
	}
	if err := validation.ValidatePassword(password, a.cfg.Security.MinPasswordLength); err != nil {
		return "", err
	}

	confirm, err := a.readPassword(cmd, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// readCredentials prompts for the password of each user.
func (a *app) readCredentials(cmd *cobra.Command, usernames []string) ([]pph.Credential, error) {
	creds := make([]pph.Credential, 0, len(usernames))
	for _, username := range usernames {
		password, err := a.readPassword(cmd, fmt.Sprintf("Password for %s: ", username))
		if err != nil {
			return nil, err
		}
		creds = append(creds, pph.Credential{Username: username, Password: password})
	}
	return creds, nil
}

func (a *app) databaseStorage() (*storage.FileStorage, error) {
	path := a.dbPath
	if path == "" {
		var err error
		if path, err = a.cfg.DatabasePath(); err != nil {
			return nil, err
		}
	}
	return storage.NewFileStorage(path).WithKDFParams(a.cfg.KDFParams()), nil
}

// loadDatabase reloads the database, asking for the passphrase of a sealed
// file. The result is locked.
func (a *app) loadDatabase(cmd *cobra.Command) (*pph.Context, *storage.FileStorage, error) {
	fs, err := a.databaseStorage()
	if err != nil {
		return nil, nil, err
	}
	if !fs.Exists() {
		return nil, nil, fmt.Errorf("no password database at %s, run 'pph init' first", fs.Path())
	}

	sealed, err := fs.IsSealed()
	if err != nil {
		return nil, nil, err
	}
	if sealed {
		passphrase, err := a.readPassword(cmd, "Database passphrase: ")
		if err != nil {
			return nil, nil, err
		}
		a.passphrase = []byte(passphrase)
	}

	ctx, err := pph.ReloadFrom(fs, a.passphrase, pph.WithLogger(a.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", fs.Path(), err)
	}
	return ctx, fs, nil
}

func (a *app) saveDatabase(ctx *pph.Context, fs *storage.FileStorage) error {
	if err := ctx.StoreTo(fs, a.passphrase); err != nil {
		return fmt.Errorf("failed to store %s: %w", fs.Path(), err)
	}
	return nil
}

// unlockWith unlocks ctx using the passwords of the given protector accounts.
func (a *app) unlockWith(cmd *cobra.Command, ctx *pph.Context, usernames []string) error {
	if !ctx.Locked() {
		return nil
	}
	if len(usernames) == 0 {
		return fmt.Errorf("database is locked: pass --unlock with %d protector account(s)", ctx.Threshold())
	}

	creds, err := a.readCredentials(cmd, usernames)
	if err != nil {
		return err
	}
	if err := ctx.Unlock(creds); err != nil {
		return fmt.Errorf("failed to unlock database: %w", err)
	}
	return nil
}

func (a *app) wipe() {
	secure.Zero(a.passphrase)
	a.passphrase = nil
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprint(w, "✓ ")
	green.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}

func printWarning(w io.Writer, lines ...string) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintln(w, "⚠️  SECURITY WARNING:")
	for _, line := range lines {
		fmt.Fprintf(w, "- %s\n", line)
	}
}
