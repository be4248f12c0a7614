package validation

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Davincible/pph/pkg/crypto/mnemonic"
	"github.com/Davincible/pph/pkg/pph"
)

var (
	hexPattern      = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)
)

func ValidateHex(input string) error {
	input = strings.TrimSpace(input)
	if len(input) == 0 {
		return fmt.Errorf("hex string cannot be empty")
	}

	if len(input)%2 != 0 {
		return fmt.Errorf("hex string must have even length")
	}

	if !hexPattern.MatchString(input) {
		return fmt.Errorf("invalid hex characters")
	}

	return nil
}

// ValidateShare checks a tagged share: hex encoded data bytes followed by a
// non-zero index byte.
func ValidateShare(share string) error {
	if err := ValidateHex(share); err != nil {
		return fmt.Errorf("invalid share format: %w", err)
	}

	data, err := hex.DecodeString(strings.TrimSpace(share))
	if err != nil {
		return fmt.Errorf("failed to decode share: %w", err)
	}

	if len(data) < 2 {
		return fmt.Errorf("share is too short")
	}

	if data[len(data)-1] == 0 {
		return fmt.Errorf("share index cannot be 0")
	}

	return nil
}

func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if len(username) > pph.MaxUsernameLength {
		return fmt.Errorf("username too long (max %d characters)", pph.MaxUsernameLength)
	}

	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username may only contain letters, digits, '.', '_', '@' and '-'")
	}

	return nil
}

func ValidatePassword(password string, minLength int) error {
	if utf8.RuneCountInString(password) < minLength {
		return fmt.Errorf("password must be at least %d characters", minLength)
	}

	if len(password) > 1024 {
		return fmt.Errorf("password too long (max 1024 bytes)")
	}

	for i, ch := range password {
		if ch == 0 {
			return fmt.Errorf("password contains null character at position %d", i)
		}

		if ch == utf8.RuneError {
			return fmt.Errorf("password contains invalid UTF-8 at position %d", i)
		}
	}

	return nil
}

func ValidateThresholdParams(threshold, checkBits int) error {
	if threshold < 1 || threshold > pph.MaxShareIndex {
		return fmt.Errorf("threshold must be between 1 and %d (got %d)", pph.MaxShareIndex, threshold)
	}

	if checkBits < 0 || checkBits > pph.MaxCheckBits {
		return fmt.Errorf("isolated check bytes must be between 0 and %d (got %d)", pph.MaxCheckBits, checkBits)
	}

	return nil
}

func ValidateSplitParams(parts, threshold int) error {
	if parts < 1 || parts > 255 {
		return fmt.Errorf("parts must be between 1 and 255 (got %d)", parts)
	}

	if threshold < 1 || threshold > parts {
		return fmt.Errorf("threshold must be between 1 and %d (got %d)", parts, threshold)
	}

	return nil
}

// ParseByteList parses comma or space separated bytes. Each element may be
// decimal or 0x-prefixed hex.
func ParseByteList(input string) ([]byte, error) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("byte list cannot be empty")
	}

	out := make([]byte, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("element %d (%q) is not a byte value", i+1, f)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// ValidateWordCount checks that a generated password can have count words.
func ValidateWordCount(count int) error {
	if _, err := mnemonic.EntropyBitsFromWordCount(count); err != nil {
		return fmt.Errorf("--words must be 12, 15, 18, 21 or 24: %w", err)
	}
	return nil
}
