package polymath

import (
	"fmt"

	"github.com/Davincible/pph/pkg/crypto/gf256"
)

// Interpolate returns the coefficients of the unique polynomial P of degree
// below len(xs) with P(xs[i]) == fxs[i] for every i.
//
// The x coordinates must be nonzero and pairwise distinct.
func Interpolate(xs, fxs []byte) ([]byte, error) {
	if err := checkPoints(xs, fxs); err != nil {
		return nil, err
	}

	n := len(xs)
	result := make([]byte, n)
	basis := make([]byte, n)

	// l_i(X) = prod_{j != i} (X - x_j) / (x_i - x_j)
	for i := 0; i < n; i++ {
		basis[0] = 1
		for k := 1; k < n; k++ {
			basis[k] = 0
		}

		for j := 0; j < n; j++ {
			if i == j {
				continue
			}

			denom := gf256.Sub(xs[i], xs[j])
			lo, err := gf256.Div(xs[j], denom)
			if err != nil {
				return nil, fmt.Errorf("basis %d: %w", i, err)
			}
			hi, err := gf256.Inverse(denom)
			if err != nil {
				return nil, fmt.Errorf("basis %d: %w", i, err)
			}

			if err := multiplyByBinomial(basis, lo, hi); err != nil {
				return nil, fmt.Errorf("basis %d: %w", i, err)
			}
		}

		scale(basis, fxs[i])
		if err := addInto(result, basis); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Secret returns the constant term of the polynomial through the points.
func Secret(xs, fxs []byte) (byte, error) {
	coeffs, err := Interpolate(xs, fxs)
	if err != nil {
		return 0, err
	}
	return coeffs[0], nil
}

// InterpolateAt returns P(x) for the polynomial through the points. Unlike
// Evaluate, x may be 0.
func InterpolateAt(xs, fxs []byte, x byte) (byte, error) {
	coeffs, err := Interpolate(xs, fxs)
	if err != nil {
		return 0, err
	}
	return horner(coeffs, x), nil
}

func horner(coeffs []byte, x byte) byte {
	var acc byte
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = gf256.Add(gf256.Mul(acc, x), coeffs[i])
	}
	return acc
}

func checkPoints(xs, fxs []byte) error {
	if len(xs) != len(fxs) {
		return fmt.Errorf("%w: %d x values, %d y values", ErrLengthMismatch, len(xs), len(fxs))
	}
	if len(xs) == 0 {
		return fmt.Errorf("%w: at least one point is required", ErrLengthMismatch)
	}
	if len(xs) > MaxPoints {
		return fmt.Errorf("%w: %d points exceed the %d distinct share indices", ErrLengthMismatch, len(xs), MaxPoints)
	}

	var seen [256]int
	for i, x := range xs {
		if x == 0 {
			return fmt.Errorf("%w: position %d", ErrInvalidShareIndex, i)
		}
		if seen[x] != 0 {
			return fmt.Errorf("%w: %#02x at positions %d and %d", ErrDuplicateShareIndex, x, seen[x]-1, i)
		}
		seen[x] = i + 1
	}
	return nil
}
