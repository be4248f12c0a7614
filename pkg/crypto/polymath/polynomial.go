// Package polymath evaluates and interpolates polynomials over GF(2^8).
//
// A polynomial is a byte slice of coefficients where coeffs[i] belongs to X^i,
// so coeffs[0] is the constant term (the secret, when the polynomial shares one).
// Evaluate derives a participant's share, Interpolate reconstructs the full
// coefficient vector from a threshold of shares.
package polymath

import (
	"errors"
	"fmt"

	"github.com/Davincible/pph/pkg/crypto/gf256"
)

// MaxPoints is the number of distinct nonzero share indices in GF(2^8).
const MaxPoints = 255

var (
	// ErrInvalidShareIndex is returned when 0 is used as a share index.
	// Index 0 is where the secret itself lives.
	ErrInvalidShareIndex = errors.New("invalid share index value, cannot be 0")

	// ErrDuplicateShareIndex is returned when two points share an x coordinate.
	ErrDuplicateShareIndex = errors.New("duplicate share index")

	// ErrLengthMismatch is returned when input lengths disagree.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrDegreeOverflow is returned when a product would not fit the fixed
	// coefficient length. Interpolate never triggers it on valid input.
	ErrDegreeOverflow = errors.New("polynomial degree overflow")
)

// Evaluate computes the share value f(x) = sum coeffs[i] * x^i.
func Evaluate(x byte, coeffs []byte) (byte, error) {
	if x == 0 {
		return 0, ErrInvalidShareIndex
	}

	var acc byte
	xi := byte(1)
	for _, c := range coeffs {
		acc = gf256.Add(acc, gf256.Mul(c, xi))
		xi = gf256.Mul(xi, x)
	}
	return acc, nil
}

// scale multiplies every coefficient by k in place.
func scale(poly []byte, k byte) {
	for i := range poly {
		poly[i] = gf256.Mul(poly[i], k)
	}
}

// addInto adds terms to dest coefficient-wise.
func addInto(dest, terms []byte) error {
	if len(dest) != len(terms) {
		return fmt.Errorf("%w: adding %d coefficients into %d", ErrLengthMismatch, len(terms), len(dest))
	}
	for i := range dest {
		dest[i] = gf256.Add(dest[i], terms[i])
	}
	return nil
}

// multiplyByBinomial multiplies dest by (lo + hi*X) in place, keeping len(dest)
// coefficients. The top coefficient must be zero beforehand.
func multiplyByBinomial(dest []byte, lo, hi byte) error {
	n := len(dest)
	if n == 0 || n > MaxPoints+1 {
		return fmt.Errorf("%w: cannot multiply a polynomial of length %d", ErrDegreeOverflow, n)
	}
	if dest[n-1] != 0 {
		return fmt.Errorf("%w: coefficient %d is %#02x", ErrDegreeOverflow, n-1, dest[n-1])
	}

	var shifted [MaxPoints + 1]byte
	for i := 0; i < n; i++ {
		shifted[i] = gf256.Mul(dest[i], hi)
	}

	scale(dest, lo)

	for i := 0; i < n-1; i++ {
		dest[i+1] = gf256.Add(dest[i+1], shifted[i])
	}
	return nil
}
