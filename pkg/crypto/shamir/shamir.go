// Package shamir shares byte secrets over GF(2^8), one polynomial per secret byte.
//
// Shares are compatible with the layout used by hashicorp/vault's shamir
// package: Tagged appends the share index after the share bytes.
package shamir

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/Davincible/pph/pkg/crypto/polymath"
	"github.com/Davincible/pph/pkg/secure"
)

var (
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrInconsistentShares  = errors.New("shares do not lie on the same polynomial")
	ErrShareLengthMismatch = errors.New("share length mismatch")
)

type Share struct {
	Index byte
	Data  []byte
}

// Tagged returns the share in vault's layout: the share bytes followed by the index.
func (s Share) Tagged() []byte {
	out := make([]byte, len(s.Data)+1)
	copy(out, s.Data)
	out[len(s.Data)] = s.Index
	return out
}

// ParseTagged is the inverse of Tagged.
func ParseTagged(b []byte) (Share, error) {
	if len(b) < 2 {
		return Share{}, fmt.Errorf("tagged share too short: %d bytes", len(b))
	}
	idx := b[len(b)-1]
	if idx == 0 {
		return Share{}, polymath.ErrInvalidShareIndex
	}
	data := make([]byte, len(b)-1)
	copy(data, b)
	return Share{Index: idx, Data: data}, nil
}

type Config struct {
	Parts     int
	Threshold int
}

func (c *Config) Validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", c.Threshold)
	}
	if c.Threshold > c.Parts {
		return fmt.Errorf("threshold (%d) cannot be greater than parts (%d)", c.Threshold, c.Parts)
	}
	if c.Parts > polymath.MaxPoints {
		return fmt.Errorf("parts cannot exceed %d, got %d", polymath.MaxPoints, c.Parts)
	}
	return nil
}

// Dealer holds the secret polynomials and hands out shares for any index.
type Dealer struct {
	threshold int
	coeffs    [][]byte
}

// NewDealer builds random polynomials of degree threshold-1 whose constant
// terms are the secret bytes. A nil random uses crypto/rand.
func NewDealer(secret []byte, threshold int, random io.Reader) (*Dealer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	if threshold < 1 || threshold > polymath.MaxPoints {
		return nil, fmt.Errorf("threshold must be between 1 and %d, got %d", polymath.MaxPoints, threshold)
	}
	if random == nil {
		random = rand.Reader
	}

	d := &Dealer{
		threshold: threshold,
		coeffs:    make([][]byte, len(secret)),
	}
	for i, b := range secret {
		poly := make([]byte, threshold)
		poly[0] = b
		if _, err := io.ReadFull(random, poly[1:]); err != nil {
			d.Destroy()
			return nil, fmt.Errorf("failed to generate coefficients: %w", err)
		}
		d.coeffs[i] = poly
	}

	return d, nil
}

func (d *Dealer) Threshold() int {
	return d.threshold
}

// Len is the secret length in bytes.
func (d *Dealer) Len() int {
	return len(d.coeffs)
}

// Secret returns a copy of the shared secret.
func (d *Dealer) Secret() []byte {
	out := make([]byte, len(d.coeffs))
	for i, poly := range d.coeffs {
		out[i] = poly[0]
	}
	return out
}

// Share evaluates every byte polynomial at index.
func (d *Dealer) Share(index byte) (Share, error) {
	data := make([]byte, len(d.coeffs))
	for i, poly := range d.coeffs {
		y, err := polymath.Evaluate(index, poly)
		if err != nil {
			return Share{}, err
		}
		data[i] = y
	}
	return Share{Index: index, Data: data}, nil
}

// Verify reports whether the share lies on the dealer's polynomials.
func (d *Dealer) Verify(share Share) bool {
	if share.Index == 0 || len(share.Data) != len(d.coeffs) {
		return false
	}
	expected, err := d.Share(share.Index)
	if err != nil {
		return false
	}
	defer secure.Zero(expected.Data)
	return secure.ConstantTimeCompare(expected.Data, share.Data)
}

// Destroy zeroes the polynomials.
func (d *Dealer) Destroy() {
	for _, poly := range d.coeffs {
		secure.Zero(poly)
	}
	d.coeffs = nil
}

// Recover rebuilds the full dealer from at least threshold shares. The first
// threshold shares define the polynomials; any extra share must lie on them.
func Recover(shares []Share, threshold int) (*Dealer, error) {
	if threshold < 1 || threshold > polymath.MaxPoints {
		return nil, fmt.Errorf("threshold must be between 1 and %d, got %d", polymath.MaxPoints, threshold)
	}
	if len(shares) < threshold {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientShares, len(shares), threshold)
	}
	if err := checkLengths(shares); err != nil {
		return nil, err
	}

	base := shares[:threshold]
	size := len(base[0].Data)
	xs := make([]byte, threshold)
	for i, s := range base {
		xs[i] = s.Index
	}

	d := &Dealer{
		threshold: threshold,
		coeffs:    make([][]byte, size),
	}
	ys := make([]byte, threshold)
	defer secure.Zero(ys)
	for k := 0; k < size; k++ {
		for i, s := range base {
			ys[i] = s.Data[k]
		}
		poly, err := polymath.Interpolate(xs, ys)
		if err != nil {
			d.Destroy()
			return nil, fmt.Errorf("byte %d: %w", k, err)
		}
		d.coeffs[k] = poly
	}

	for _, extra := range shares[threshold:] {
		if !d.Verify(extra) {
			d.Destroy()
			return nil, fmt.Errorf("%w: share %d", ErrInconsistentShares, extra.Index)
		}
	}

	return d, nil
}

func Split(secret []byte, config Config) ([]Share, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dealer, err := NewDealer(secret, config.Threshold, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to split secret: %w", err)
	}
	defer dealer.Destroy()

	result := make([]Share, config.Parts)
	for i := range result {
		share, err := dealer.Share(byte(i + 1))
		if err != nil {
			return nil, fmt.Errorf("failed to split secret: %w", err)
		}
		result[i] = share
	}

	return result, nil
}

// Combine interpolates every given share and returns the constant terms.
func Combine(shares []Share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: at least 1 share is required for reconstruction", ErrInsufficientShares)
	}
	if err := checkLengths(shares); err != nil {
		return nil, err
	}

	xs := make([]byte, len(shares))
	for i, s := range shares {
		xs[i] = s.Index
	}

	secret := make([]byte, len(shares[0].Data))
	ys := make([]byte, len(shares))
	defer secure.Zero(ys)
	for k := range secret {
		for i, s := range shares {
			ys[i] = s.Data[k]
		}
		b, err := polymath.Secret(xs, ys)
		if err != nil {
			return nil, fmt.Errorf("failed to combine shares: %w", err)
		}
		secret[k] = b
	}

	return secret, nil
}

func checkLengths(shares []Share) error {
	size := len(shares[0].Data)
	for _, s := range shares {
		if len(s.Data) == 0 {
			return fmt.Errorf("share %d has empty data", s.Index)
		}
		if len(s.Data) != size {
			return fmt.Errorf("%w: share %d has %d bytes, expected %d", ErrShareLengthMismatch, s.Index, len(s.Data), size)
		}
	}
	return nil
}
