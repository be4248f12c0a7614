package pph

import (
	"encoding/json"
	"fmt"

	"github.com/Davincible/pph/pkg/storage"
)

const fileVersion = 1

// fileFormat is the on-disk layout. The secret and the share polynomials are
// never written.
type fileFormat struct {
	Version           int        `json:"version"`
	Threshold         int        `json:"threshold"`
	IsolatedCheckBits int        `json:"isolated_check_bits"`
	Iterations        int        `json:"iterations"`
	NextIndex         int        `json:"next_index"`
	Accounts          []*Account `json:"accounts"`
}

// Marshal encodes the database without its secret.
func (c *Context) Marshal() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}

	data, err := json.MarshalIndent(fileFormat{
		Version:           fileVersion,
		Threshold:         c.threshold,
		IsolatedCheckBits: c.checkBits,
		Iterations:        c.iterations,
		NextIndex:         c.nextIndex,
		Accounts:          c.sortedAccounts(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode database: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a database written by Marshal. The result is locked.
func Unmarshal(data []byte, opts ...Option) (*Context, error) {
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode database: %w", err)
	}
	if f.Version != fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}

	c, err := newContext(f.Threshold, f.IsolatedCheckBits, opts)
	if err != nil {
		return nil, err
	}
	if f.Iterations < 1 || f.Iterations > MaxIterations {
		return nil, fmt.Errorf("iteration count %d outside 1..%d", f.Iterations, MaxIterations)
	}
	c.iterations = f.Iterations

	if f.NextIndex < 1 || f.NextIndex > MaxShareIndex+1 {
		return nil, fmt.Errorf("invalid next share index %d", f.NextIndex)
	}
	c.nextIndex = f.NextIndex

	used := make(map[byte]string)
	for _, acc := range f.Accounts {
		if err := c.validateAccount(acc, used); err != nil {
			return nil, err
		}
		c.accounts[acc.Username] = acc
	}

	c.logger.Debug("password database loaded",
		"threshold", c.threshold,
		"accounts", len(c.accounts))

	return c, nil
}

func (c *Context) validateAccount(acc *Account, used map[byte]string) error {
	if acc == nil {
		return fmt.Errorf("null account record")
	}
	if err := validateCredential(acc.Username, "-"); err != nil {
		return err
	}
	if _, exists := c.accounts[acc.Username]; exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, acc.Username)
	}
	if len(acc.Entries) == 0 {
		return fmt.Errorf("account %s has no entries", acc.Username)
	}

	for _, e := range acc.Entries {
		if len(e.Salt) == 0 {
			return fmt.Errorf("account %s has an entry without salt", acc.Username)
		}
		if len(e.CheckBits) != c.checkBits {
			return fmt.Errorf("account %s has %d check bytes, want %d", acc.Username, len(e.CheckBits), c.checkBits)
		}
	}

	switch acc.Kind {
	case KindShielded:
		if len(acc.Entries) != 1 {
			return fmt.Errorf("shielded account %s must have exactly one entry", acc.Username)
		}
		if acc.Entries[0].ShareIndex != 0 {
			return fmt.Errorf("shielded account %s has share index %d", acc.Username, acc.Entries[0].ShareIndex)
		}
	case KindThreshold:
		for _, e := range acc.Entries {
			if e.ShareIndex == 0 || int(e.ShareIndex) >= c.nextIndex {
				return fmt.Errorf("account %s has out of range share index %d", acc.Username, e.ShareIndex)
			}
			if owner, dup := used[e.ShareIndex]; dup {
				return fmt.Errorf("share index %d assigned to both %s and %s", e.ShareIndex, owner, acc.Username)
			}
			if len(e.Value) != c.shareLength() {
				return fmt.Errorf("account %s has a share of %d bytes, want %d", acc.Username, len(e.Value), c.shareLength())
			}
			used[e.ShareIndex] = acc.Username
		}
	default:
		return fmt.Errorf("account %s has unknown kind %q", acc.Username, acc.Kind)
	}
	return nil
}

// Store writes the database to path as plain JSON.
func (c *Context) Store(path string) error {
	return c.StoreTo(storage.NewFileStorage(path), nil)
}

// StoreTo writes the database through fs. A non-empty passphrase seals the
// file.
func (c *Context) StoreTo(fs *storage.FileStorage, passphrase []byte) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if len(passphrase) > 0 {
		err = fs.SaveSealed(data, passphrase)
	} else {
		err = fs.Save(data)
	}
	if err != nil {
		return err
	}

	c.logger.Debug("password database stored", "path", fs.Path(), "sealed", len(passphrase) > 0)
	return nil
}

// Reload reads a plain database written by Store. The result is locked.
func Reload(path string, opts ...Option) (*Context, error) {
	return ReloadFrom(storage.NewFileStorage(path), nil, opts...)
}

// ReloadFrom reads a database through fs, unsealing it when passphrase is
// non-empty.
func ReloadFrom(fs *storage.FileStorage, passphrase []byte, opts ...Option) (*Context, error) {
	var (
		data []byte
		err  error
	)
	if len(passphrase) > 0 {
		data, err = fs.LoadSealed(passphrase)
	} else {
		data, err = fs.Load()
	}
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, opts...)
}
