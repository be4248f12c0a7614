package pph

import (
	"fmt"

	"github.com/Davincible/pph/pkg/crypto/shamir"
	"github.com/Davincible/pph/pkg/secure"
)

// Unlock reconstructs the secret from the passwords of threshold accounts.
// Every share of every listed threshold account takes part; together they
// must cover at least threshold distinct share indices. Shielded accounts
// contribute nothing. Unlocking an unlocked database is a no-op.
func (c *Context) Unlock(credentials []Credential) error {
	for _, cred := range credentials {
		if err := validateCredential(cred.Username, cred.Password); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.secret != nil {
		return nil
	}

	shares, err := c.collectShares(credentials)
	defer func() {
		for _, s := range shares {
			secure.Zero(s.Data)
		}
	}()
	if err != nil {
		return err
	}

	if len(shares) < c.threshold {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientShares, len(shares), c.threshold)
	}

	dealer, err := shamir.Recover(shares, c.threshold)
	if err != nil {
		c.logger.Warn("unlock failed", "reason", err.Error())
		return fmt.Errorf("%w: %w", ErrSecretIntegrity, err)
	}

	secret := dealer.Secret()
	if !checkSecret(secret) {
		dealer.Destroy()
		secure.Zero(secret)
		c.logger.Warn("unlock failed", "reason", "integrity check")
		return ErrSecretIntegrity
	}

	c.secret = secret
	c.dealer = dealer

	c.logger.Debug("password database unlocked", "accounts", len(credentials), "shares", len(shares))
	return nil
}

// collectShares unmasks the shares of the given accounts. Share indices are
// deduplicated; with isolated check bytes, wrong passwords are rejected here.
func (c *Context) collectShares(credentials []Credential) ([]shamir.Share, error) {
	var shares []shamir.Share
	seen := make(map[byte]bool)
	n := c.shareLength()

	for _, cred := range credentials {
		acc, ok := c.accounts[cred.Username]
		if !ok {
			return shares, fmt.Errorf("%w: %s", ErrAccountNotFound, cred.Username)
		}
		if acc.Kind != KindThreshold {
			continue
		}

		for _, entry := range acc.Entries {
			if seen[entry.ShareIndex] {
				continue
			}

			digest := c.hash(entry.Salt, cred.Password)
			if c.checkBits > 0 && !secure.ConstantTimeCompare(c.checkBytes(digest), entry.CheckBits) {
				secure.Zero(digest)
				return shares, fmt.Errorf("%w: %s", ErrLoginFailed, cred.Username)
			}

			data := make([]byte, n)
			err := secure.XOR(data, entry.Value, digest[:n])
			secure.Zero(digest)
			if err != nil {
				return shares, fmt.Errorf("corrupted entry for %s: %w", cred.Username, err)
			}

			seen[entry.ShareIndex] = true
			shares = append(shares, shamir.Share{Index: entry.ShareIndex, Data: data})
		}
	}

	return shares, nil
}
