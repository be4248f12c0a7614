package pph

import (
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/Davincible/pph/pkg/secure"
)

var shieldedKeyInfo = []byte("pph shielded account key")

// CreateAccount adds an account. With shares > 0 it becomes a threshold
// account holding that many shares of the secret; shares == 0 creates a
// shielded account. The database must be unlocked.
func (c *Context) CreateAccount(username, password string, shares int) error {
	if err := validateCredential(username, password); err != nil {
		return err
	}
	if shares < 0 {
		return fmt.Errorf("share count cannot be negative, got %d", shares)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.secret == nil {
		return ErrContextLocked
	}
	if _, exists := c.accounts[username]; exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, username)
	}
	if c.nextIndex+shares-1 > MaxShareIndex {
		return fmt.Errorf("%w: %d requested, %d available", ErrShareIndexExhausted, shares, MaxShareIndex-c.nextIndex+1)
	}

	acc := &Account{Username: username}

	if shares == 0 {
		entry, err := c.newShieldedEntry(username, password)
		if err != nil {
			return err
		}
		acc.Kind = KindShielded
		acc.Entries = []Entry{entry}
	} else {
		acc.Kind = KindThreshold
		acc.Entries = make([]Entry, 0, shares)
		for i := 0; i < shares; i++ {
			entry, err := c.newThresholdEntry(byte(c.nextIndex+i), password)
			if err != nil {
				return err
			}
			acc.Entries = append(acc.Entries, entry)
		}
		c.nextIndex += shares
	}

	c.accounts[username] = acc

	c.logger.Debug("account created", "username", username, "kind", acc.Kind, "shares", shares)
	return nil
}

func (c *Context) newSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(c.random, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func (c *Context) newThresholdEntry(index byte, password string) (Entry, error) {
	salt, err := c.newSalt()
	if err != nil {
		return Entry{}, err
	}

	digest := c.hash(salt, password)
	defer secure.Zero(digest)

	share, err := c.dealer.Share(index)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to compute share %d: %w", index, err)
	}
	defer secure.Zero(share.Data)

	n := c.shareLength()
	value := make([]byte, n)
	if err := secure.XOR(value, share.Data, digest[:n]); err != nil {
		return Entry{}, err
	}

	return Entry{
		ShareIndex: index,
		Salt:       salt,
		Value:      value,
		CheckBits:  c.checkBytes(digest),
	}, nil
}

func (c *Context) newShieldedEntry(username, password string) (Entry, error) {
	salt, err := c.newSalt()
	if err != nil {
		return Entry{}, err
	}

	digest := c.hash(salt, password)
	defer secure.Zero(digest)

	aead, err := c.shieldedAEAD()
	if err != nil {
		return Entry{}, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+c.shareLength()+aead.Overhead())
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return Entry{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return Entry{
		Salt:      salt,
		Value:     aead.Seal(nonce, nonce, digest[:c.shareLength()], []byte(username)),
		CheckBits: c.checkBytes(digest),
	}, nil
}

// shieldedAEAD derives the shielded-account key from the secret.
func (c *Context) shieldedAEAD() (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	defer secure.Zero(key)

	kdf := hkdf.New(sha256.New, c.secret, nil, shieldedKeyInfo)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive shielded key: %w", err)
	}

	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return a, nil
}

func (c *Context) checkBytes(digest []byte) []byte {
	if c.checkBits == 0 {
		return nil
	}
	out := make([]byte, c.checkBits)
	copy(out, digest[c.shareLength():])
	return out
}

// CheckLogin verifies a password. An unlocked database verifies the full
// hash; a locked one can only compare the isolated check bytes and returns
// ErrContextLocked when there are none.
func (c *Context) CheckLogin(username, password string) error {
	if err := validateCredential(username, password); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	acc, ok := c.accounts[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	entry := acc.Entries[0]

	if c.secret == nil && c.checkBits == 0 {
		return ErrContextLocked
	}

	digest := c.hash(entry.Salt, password)
	defer secure.Zero(digest)

	var (
		valid bool
		err   error
	)
	switch {
	case c.secret == nil:
		valid = secure.ConstantTimeCompare(c.checkBytes(digest), entry.CheckBits)
	case acc.Kind == KindShielded:
		valid, err = c.verifyShielded(username, entry, digest)
	default:
		valid, err = c.verifyThreshold(entry, digest)
	}
	if err != nil {
		return err
	}

	if !valid {
		c.logger.Debug("login rejected", "username", username, "locked", c.secret == nil)
		return fmt.Errorf("%w: %s", ErrLoginFailed, username)
	}
	return nil
}

func (c *Context) verifyThreshold(entry Entry, digest []byte) (bool, error) {
	share, err := c.dealer.Share(entry.ShareIndex)
	if err != nil {
		return false, fmt.Errorf("failed to compute share %d: %w", entry.ShareIndex, err)
	}
	defer secure.Zero(share.Data)

	n := c.shareLength()
	if len(entry.Value) != n {
		return false, nil
	}
	expected := make([]byte, n)
	defer secure.Zero(expected)
	if err := secure.XOR(expected, share.Data, digest[:n]); err != nil {
		return false, err
	}
	return secure.ConstantTimeCompare(expected, entry.Value), nil
}

func (c *Context) verifyShielded(username string, entry Entry, digest []byte) (bool, error) {
	a, err := c.shieldedAEAD()
	if err != nil {
		return false, err
	}
	if len(entry.Value) < a.NonceSize() {
		return false, nil
	}

	nonce, sealed := entry.Value[:a.NonceSize()], entry.Value[a.NonceSize():]
	stored, err := a.Open(nil, nonce, sealed, []byte(username))
	if err != nil {
		return false, nil
	}
	defer secure.Zero(stored)

	return secure.ConstantTimeCompare(stored, digest[:c.shareLength()]), nil
}

func validateCredential(username, password string) error {
	if username == "" || len(username) > MaxUsernameLength {
		return fmt.Errorf("%w: length must be between 1 and %d", ErrInvalidUsername, MaxUsernameLength)
	}
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidPassword)
	}
	return nil
}
