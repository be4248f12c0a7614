// Package pph implements a PolyPasswordHasher password database.
//
// Threshold (protector) accounts store one or more shares of a database secret
// masked with the salted hash of their password. A password cracker that
// steals the database has to guess threshold passwords at once before any
// single hash can be checked. Shielded accounts hold no share; their hash is
// encrypted under a key derived from the secret.
//
// A freshly created Context knows its secret and is unlocked. A reloaded
// Context is locked until Unlock is given threshold passwords. While locked,
// logins can only be checked against the isolated check bytes.
package pph

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Davincible/pph/pkg/crypto/polymath"
	"github.com/Davincible/pph/pkg/crypto/shamir"
	"github.com/Davincible/pph/pkg/secure"
)

const (
	// DigestLength is the length of a salted password hash.
	DigestLength = sha256.Size

	// MaxCheckBits is the largest number of hash bytes kept in clear.
	MaxCheckBits = 16

	// MaxShareIndex is the highest share index a database can hand out.
	MaxShareIndex = polymath.MaxPoints

	SaltLength = 16

	MaxUsernameLength = 128

	DefaultIterations = 100000
	// MaxIterations bounds the PBKDF2 cost a database file may ask for.
	MaxIterations = 10000000

	integrityLength = 4
)

type AccountKind string

const (
	KindThreshold AccountKind = "threshold"
	KindShielded  AccountKind = "shielded"
)

// Entry is one stored password record. Threshold accounts have one entry per
// share; shielded accounts have exactly one entry with ShareIndex 0.
type Entry struct {
	ShareIndex byte   `json:"share_index"`
	Salt       []byte `json:"salt"`
	Value      []byte `json:"value"`
	CheckBits  []byte `json:"check_bits,omitempty"`
}

type Account struct {
	Username string      `json:"username"`
	Kind     AccountKind `json:"kind"`
	Entries  []Entry     `json:"entries"`
}

type AccountInfo struct {
	Username string
	Kind     AccountKind
	Shares   int
}

type Info struct {
	Threshold      int
	CheckBits      int
	Iterations     int
	Locked         bool
	Accounts       int
	NextShareIndex int
}

type Credential struct {
	Username string
	Password string
}

type Option func(*Context)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIterations sets the PBKDF2 iteration count for new databases. Counts
// outside 1..MaxIterations are ignored. Reloaded databases keep the count
// they were created with.
func WithIterations(iterations int) Option {
	return func(c *Context) {
		if iterations > 0 && iterations <= MaxIterations {
			c.iterations = iterations
		}
	}
}

// WithRandom replaces crypto/rand as the source of salts, secrets and coefficients.
func WithRandom(r io.Reader) Option {
	return func(c *Context) {
		if r != nil {
			c.random = r
		}
	}
}

type Context struct {
	mu sync.RWMutex

	threshold  int
	checkBits  int
	iterations int

	// nil while locked
	secret []byte
	dealer *shamir.Dealer

	nextIndex int
	accounts  map[string]*Account

	logger *slog.Logger
	random io.Reader
	closed bool
}

func newContext(threshold, checkBits int, opts []Option) (*Context, error) {
	if threshold < 1 || threshold > MaxShareIndex {
		return nil, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidThreshold, MaxShareIndex, threshold)
	}
	if checkBits < 0 || checkBits > MaxCheckBits {
		return nil, fmt.Errorf("%w: must be between 0 and %d, got %d", ErrInvalidCheckBits, MaxCheckBits, checkBits)
	}

	c := &Context{
		threshold:  threshold,
		checkBits:  checkBits,
		iterations: DefaultIterations,
		nextIndex:  1,
		accounts:   make(map[string]*Account),
		logger:     slog.Default(),
		random:     rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// New creates an unlocked database with a fresh secret.
func New(threshold, isolatedCheckBits int, opts ...Option) (*Context, error) {
	c, err := newContext(threshold, isolatedCheckBits, opts)
	if err != nil {
		return nil, err
	}

	secret, err := c.generateSecret()
	if err != nil {
		return nil, err
	}

	dealer, err := shamir.NewDealer(secret, threshold, c.random)
	if err != nil {
		secure.Zero(secret)
		return nil, fmt.Errorf("failed to create share dealer: %w", err)
	}

	c.secret = secret
	c.dealer = dealer

	c.logger.Debug("password database created",
		"threshold", threshold,
		"isolated_check_bits", isolatedCheckBits,
		"iterations", c.iterations)

	return c, nil
}

// shareLength is the number of hash bytes that mask a share. The remaining
// checkBits bytes are stored in clear.
func (c *Context) shareLength() int {
	return DigestLength - c.checkBits
}

// generateSecret returns random bytes followed by a truncated hash of them,
// so a reconstructed secret can be recognised.
func (c *Context) generateSecret() ([]byte, error) {
	n := c.shareLength()
	secret := make([]byte, n)
	if _, err := io.ReadFull(c.random, secret[:n-integrityLength]); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	sum := sha256.Sum256(secret[:n-integrityLength])
	copy(secret[n-integrityLength:], sum[:integrityLength])
	return secret, nil
}

func checkSecret(secret []byte) bool {
	n := len(secret)
	if n <= integrityLength {
		return false
	}
	sum := sha256.Sum256(secret[:n-integrityLength])
	return secure.ConstantTimeCompare(secret[n-integrityLength:], sum[:integrityLength])
}

func (c *Context) hash(salt []byte, password string) []byte {
	return pbkdf2.Key([]byte(password), salt, c.iterations, DigestLength, sha256.New)
}

func (c *Context) Locked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.secret == nil
}

func (c *Context) Threshold() int {
	return c.threshold
}

func (c *Context) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Info{
		Threshold:      c.threshold,
		CheckBits:      c.checkBits,
		Iterations:     c.iterations,
		Locked:         c.secret == nil,
		Accounts:       len(c.accounts),
		NextShareIndex: c.nextIndex,
	}
}

// Accounts lists the accounts sorted by username.
func (c *Context) Accounts() []AccountInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]AccountInfo, 0, len(c.accounts))
	for _, acc := range c.sortedAccounts() {
		shares := 0
		if acc.Kind == KindThreshold {
			shares = len(acc.Entries)
		}
		out = append(out, AccountInfo{
			Username: acc.Username,
			Kind:     acc.Kind,
			Shares:   shares,
		})
	}
	return out
}

func (c *Context) sortedAccounts() []*Account {
	out := make([]*Account, 0, len(c.accounts))
	for _, acc := range c.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out
}

// Close zeroes the secret and the share polynomials.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lock()
	c.closed = true
}

// Lock forgets the secret, as if the database had just been reloaded.
func (c *Context) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lock()
}

func (c *Context) lock() {
	if c.secret != nil {
		secure.Zero(c.secret)
		c.secret = nil
	}
	if c.dealer != nil {
		c.dealer.Destroy()
		c.dealer = nil
	}
}
