// Package mnemonic renders generated passwords as BIP39 word lists, which are
// easier for administrators to write down and type than random bytes.
package mnemonic

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	MinEntropyBits = 128
	MaxEntropyBits = 256
)

// Mnemonic is a generated BIP39 phrase.
type Mnemonic struct {
	words []string
}

// NewMnemonic draws entropyBits of fresh entropy and encodes it as words.
func NewMnemonic(entropyBits int) (*Mnemonic, error) {
	if entropyBits < MinEntropyBits || entropyBits > MaxEntropyBits || entropyBits%32 != 0 {
		return nil, fmt.Errorf("entropy bits must be a multiple of 32 between %d and %d (got %d)",
			MinEntropyBits, MaxEntropyBits, entropyBits)
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	return FromEntropy(entropy)
}

// NewPassword generates a password phrase with the given number of words.
func NewPassword(wordCount int) (*Mnemonic, error) {
	bits, err := EntropyBitsFromWordCount(wordCount)
	if err != nil {
		return nil, err
	}
	return NewMnemonic(bits)
}

// FromEntropy encodes 16 to 32 bytes, in steps of 4, as a phrase.
func FromEntropy(entropy []byte) (*Mnemonic, error) {
	if bits := len(entropy) * 8; bits < MinEntropyBits || bits > MaxEntropyBits || bits%32 != 0 {
		return nil, fmt.Errorf("entropy must be 16, 20, 24, 28 or 32 bytes (got %d)", len(entropy))
	}

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entropy: %w", err)
	}
	return &Mnemonic{words: strings.Fields(phrase)}, nil
}

// Words returns the phrase joined by single spaces.
func (m *Mnemonic) Words() string {
	return strings.Join(m.words, " ")
}

func (m *Mnemonic) WordCount() int {
	return len(m.words)
}

// EntropyBitsFromWordCount maps a phrase length to its entropy size. Three
// words encode 32 bits of entropy plus one checksum bit.
func EntropyBitsFromWordCount(wordCount int) (int, error) {
	if wordCount < 12 || wordCount > 24 || wordCount%3 != 0 {
		return 0, fmt.Errorf("invalid word count: %d", wordCount)
	}
	return wordCount / 3 * 32, nil
}
