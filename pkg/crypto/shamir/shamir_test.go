package shamir

import (
	"bytes"
	"math/rand"
	"testing"

	vaultshamir "github.com/hashicorp/vault/shamir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/pph/pkg/crypto/polymath"
)

func TestSplitAndCombine(t *testing.T) {
	tests := []struct {
		name      string
		secret    []byte
		parts     int
		threshold int
	}{
		{
			name:      "Simple secret 3 of 5",
			secret:    []byte("my secret data"),
			parts:     5,
			threshold: 3,
		},
		{
			name:      "256-bit key 2 of 3",
			secret:    bytes.Repeat([]byte{0x42}, 32),
			parts:     3,
			threshold: 2,
		},
		{
			name:      "Large secret 5 of 7",
			secret:    bytes.Repeat([]byte("test"), 256),
			parts:     7,
			threshold: 5,
		},
		{
			name:      "Threshold of one",
			secret:    []byte("h"),
			parts:     3,
			threshold: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{
				Parts:     tt.parts,
				Threshold: tt.threshold,
			}

			shares, err := Split(tt.secret, config)
			require.NoError(t, err)
			assert.Len(t, shares, tt.parts)

			for i, share := range shares {
				assert.Len(t, share.Data, len(tt.secret))
				assert.Equal(t, byte(i+1), share.Index)
			}

			reconstructed, err := Combine(shares[:tt.threshold])
			require.NoError(t, err)
			assert.Equal(t, tt.secret, reconstructed)

			reconstructed2, err := Combine(shares[tt.parts-tt.threshold:])
			require.NoError(t, err)
			assert.Equal(t, tt.secret, reconstructed2)

			all, err := Combine(shares)
			require.NoError(t, err)
			assert.Equal(t, tt.secret, all)
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{"Valid config", Config{Parts: 5, Threshold: 3}, false},
		{"Threshold of one", Config{Parts: 1, Threshold: 1}, false},
		{"Threshold too small", Config{Parts: 5, Threshold: 0}, true},
		{"Threshold greater than parts", Config{Parts: 3, Threshold: 5}, true},
		{"Parts exceeds maximum", Config{Parts: 256, Threshold: 100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKnownShares(t *testing.T) {
	// 'h' split 2-of-n by tss
	secret, err := Combine([]Share{{Index: 2, Data: []byte{0x06}}, {Index: 4, Data: []byte{0xb4}}})
	require.NoError(t, err)
	assert.Equal(t, []byte("h"), secret)

	shares := []Share{
		{Index: 3, Data: []byte{0x1f}},
		{Index: 4, Data: []byte{0xdc}},
		{Index: 5, Data: []byte{0xf1}},
		{Index: 6, Data: []byte{0x86}},
		{Index: 7, Data: []byte{0xab}},
		{Index: 8, Data: []byte{0x1b}},
	}
	dealer, err := Recover(shares, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("h"), dealer.Secret())
}

func TestDealerRecover(t *testing.T) {
	secret := []byte("my shared secret")
	dealer, err := NewDealer(secret, 3, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	assert.Equal(t, 3, dealer.Threshold())
	assert.Equal(t, len(secret), dealer.Len())

	var shares []Share
	for _, idx := range []byte{4, 6, 1, 2} {
		s, err := dealer.Share(idx)
		require.NoError(t, err)
		shares = append(shares, s)
	}

	recovered, err := Recover(shares, 3)
	require.NoError(t, err)
	assert.Equal(t, secret, recovered.Secret())

	// the recovered dealer keeps issuing the same shares
	for _, idx := range []byte{9, 200, 255} {
		want, err := dealer.Share(idx)
		require.NoError(t, err)
		got, err := recovered.Share(idx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.True(t, recovered.Verify(got))
	}

	tampered := Share{Index: shares[3].Index, Data: append([]byte(nil), shares[3].Data...)}
	tampered.Data[3]++
	assert.False(t, recovered.Verify(tampered))
	assert.False(t, recovered.Verify(Share{Index: 0, Data: shares[0].Data}))

	_, err = Recover(append(shares[:3:3], tampered), 3)
	assert.ErrorIs(t, err, ErrInconsistentShares)

	recovered.Destroy()
	assert.Equal(t, 0, recovered.Len())
}

func TestRecoverErrors(t *testing.T) {
	_, err := Recover([]Share{{Index: 1, Data: []byte{1}}}, 2)
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = Recover([]Share{{Index: 1, Data: []byte{1}}, {Index: 1, Data: []byte{2}}}, 2)
	assert.ErrorIs(t, err, polymath.ErrDuplicateShareIndex)

	_, err = Recover([]Share{{Index: 1, Data: []byte{1}}, {Index: 2, Data: []byte{2, 3}}}, 2)
	assert.ErrorIs(t, err, ErrShareLengthMismatch)

	_, err = Combine(nil)
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = Combine([]Share{{Index: 0, Data: []byte{1}}})
	assert.ErrorIs(t, err, polymath.ErrInvalidShareIndex)

	_, err = Combine([]Share{{Index: 1, Data: []byte{}}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty data")
}

func TestDealerValidation(t *testing.T) {
	_, err := NewDealer(nil, 2, nil)
	assert.Error(t, err)

	_, err = NewDealer([]byte("x"), 0, nil)
	assert.Error(t, err)

	_, err = NewDealer([]byte("x"), 256, nil)
	assert.Error(t, err)

	dealer, err := NewDealer([]byte("x"), 2, nil)
	require.NoError(t, err)
	_, err = dealer.Share(0)
	assert.ErrorIs(t, err, polymath.ErrInvalidShareIndex)
}

func TestTagged(t *testing.T) {
	s := Share{Index: 7, Data: []byte{0xde, 0xad}}
	tagged := s.Tagged()
	assert.Equal(t, []byte{0xde, 0xad, 0x07}, tagged)

	parsed, err := ParseTagged(tagged)
	require.NoError(t, err)
	assert.Equal(t, s, parsed)

	_, err = ParseTagged([]byte{0x01})
	assert.Error(t, err)

	_, err = ParseTagged([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, polymath.ErrInvalidShareIndex)
}

func TestVaultInterop(t *testing.T) {
	secret := []byte("interoperable secret")

	t.Run("vault split, local combine", func(t *testing.T) {
		parts, err := vaultshamir.Split(secret, 5, 3)
		require.NoError(t, err)

		shares := make([]Share, 0, 3)
		for _, p := range parts[1:4] {
			s, err := ParseTagged(p)
			require.NoError(t, err)
			shares = append(shares, s)
		}

		got, err := Combine(shares)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	})

	t.Run("local split, vault combine", func(t *testing.T) {
		shares, err := Split(secret, Config{Parts: 5, Threshold: 3})
		require.NoError(t, err)

		tagged := [][]byte{shares[0].Tagged(), shares[2].Tagged(), shares[4].Tagged()}
		got, err := vaultshamir.Combine(tagged)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	})
}

func BenchmarkSplit(b *testing.B) {
	secret := bytes.Repeat([]byte{0x42}, 32)
	config := Config{
		Parts:     5,
		Threshold: 3,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := Split(secret, config)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCombine(b *testing.B) {
	secret := bytes.Repeat([]byte{0x42}, 32)
	config := Config{
		Parts:     5,
		Threshold: 3,
	}

	shares, err := Split(secret, config)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := Combine(shares[:3])
		if err != nil {
			b.Fatal(err)
		}
	}
}
