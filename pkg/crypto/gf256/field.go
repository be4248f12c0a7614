// Package gf256 implements arithmetic in GF(2^8) using the reduction polynomial
// x^8 + x^4 + x^3 + x + 1 (0x11B), the field used by AES and by tss.
//
// Multiplication and division go through exponent/logarithm tables with
// generator 3. The tables are computed once during package initialisation and
// are read-only afterwards, so every function here is safe for concurrent use.
package gf256

import (
	"errors"
	"fmt"
)

const (
	// reductionPoly is x^8 + x^4 + x^3 + x + 1
	reductionPoly = 0x11B

	generator = 3

	// order of the multiplicative group
	order = 255
)

// ErrDivisionByZero is returned when dividing by, or inverting, the zero element.
var ErrDivisionByZero = errors.New("gf256: division by zero")

var (
	expTable [256]byte
	logTable [256]byte
	invTable [256]byte
)

func init() {
	x := byte(1)
	for i := 0; i < order; i++ {
		expTable[i] = x
		logTable[x] = byte(i)
		x = mulSlow(x, generator)
	}
	expTable[order] = expTable[0]

	// log(0) is undefined and never consulted
	logTable[0] = 0

	for e := 1; e < 256; e++ {
		invTable[e] = expTable[(order-int(logTable[e]))%order]
	}
}

// mulSlow is schoolbook multiplication, only used to build the tables.
func mulSlow(a, b byte) byte {
	var result byte
	for i := 0; i < 8; i++ {
		if (b>>i)&1 == 1 {
			result ^= a
		}
		carry := a & 0x80
		a <<= 1
		if carry != 0 {
			a ^= byte(reductionPoly & 0xFF)
		}
	}
	return result
}

// Add returns a + b. Addition in characteristic 2 is XOR.
func Add(a, b byte) byte {
	return a ^ b
}

// Sub returns a - b, which is the same as Add.
func Sub(a, b byte) byte {
	return a ^ b
}

// Mul returns a * b.
func Mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[(int(logTable[a])+int(logTable[b]))%order]
}

// Div returns a / b, or ErrDivisionByZero when b is zero.
func Div(a, b byte) (byte, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: %#02x / 0", ErrDivisionByZero, a)
	}
	if a == 0 {
		return 0, nil
	}
	// the exponent difference can be negative
	return expTable[(order+int(logTable[a])-int(logTable[b]))%order], nil
}

// Inverse returns the multiplicative inverse of a.
func Inverse(a byte) (byte, error) {
	if a == 0 {
		return 0, fmt.Errorf("%w: inverse of 0", ErrDivisionByZero)
	}
	return invTable[a], nil
}

// Pow returns a raised to the n-th power. Pow(a, 0) is 1 for every a.
func Pow(a byte, n int) byte {
	if n == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	e := (int(logTable[a]) * (n % order)) % order
	if e < 0 {
		e += order
	}
	return expTable[e]
}

// Exp returns generator^k.
func Exp(k int) byte {
	k %= order
	if k < 0 {
		k += order
	}
	return expTable[k]
}

// Log returns the discrete logarithm of a to base 3.
func Log(a byte) (byte, error) {
	if a == 0 {
		return 0, fmt.Errorf("gf256: logarithm of 0 is undefined")
	}
	return logTable[a], nil
}
