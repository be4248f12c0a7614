package secure

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"runtime"
)

func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

func ConstantTimeCompare(x, y []byte) bool {
	if len(x) != len(y) {
		return false
	}
	return subtle.ConstantTimeCompare(x, y) == 1
}

// XOR writes a ^ b into dst. All three must have the same length.
func XOR(dst, a, b []byte) error {
	if len(dst) != len(a) || len(a) != len(b) {
		return fmt.Errorf("secure: xor of %d and %d bytes into %d", len(a), len(b), len(dst))
	}
	subtle.XORBytes(dst, a, b)
	return nil
}

func SecureRandom(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid length: %d", size)
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		Zero(b)
		return nil, fmt.Errorf("failed to generate secure random bytes: %w", err)
	}
	return b, nil
}
