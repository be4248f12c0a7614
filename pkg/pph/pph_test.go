package pph

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/pph/pkg/crypto/shamir"
	"github.com/Davincible/pph/pkg/storage"
)

func newTestContext(t *testing.T, threshold, checkBits int) *Context {
	t.Helper()
	c, err := New(threshold, checkBits, WithIterations(1))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func reload(t *testing.T, c *Context) *Context {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pph.json")
	require.NoError(t, c.Store(path))

	loaded, err := Reload(path)
	require.NoError(t, err)
	t.Cleanup(loaded.Close)
	return loaded
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		checkBits int
		wantErr   error
	}{
		{"zero threshold", 0, 0, ErrInvalidThreshold},
		{"threshold too large", 256, 0, ErrInvalidThreshold},
		{"negative check bits", 2, -1, ErrInvalidCheckBits},
		{"check bits too large", 2, MaxCheckBits + 1, ErrInvalidCheckBits},
		{"minimal", 1, 0, nil},
		{"maximal", 255, MaxCheckBits, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.threshold, tt.checkBits, WithIterations(1))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer c.Close()

			assert.False(t, c.Locked())
			assert.Equal(t, tt.threshold, c.Threshold())
			assert.Len(t, c.secret, DigestLength-tt.checkBits)
			assert.True(t, checkSecret(c.secret))
		})
	}
}

func TestCreateAndLogin(t *testing.T) {
	for _, checkBits := range []int{0, 2, 16} {
		t.Run(fmt.Sprintf("check bits %d", checkBits), func(t *testing.T) {
			c := newTestContext(t, 2, checkBits)

			require.NoError(t, c.CreateAccount("admin", "correct horse", 2))
			require.NoError(t, c.CreateAccount("root", "battery staple", 1))
			require.NoError(t, c.CreateAccount("alice", "kitten", 0))

			for _, cred := range []Credential{
				{"admin", "correct horse"},
				{"root", "battery staple"},
				{"alice", "kitten"},
			} {
				assert.NoError(t, c.CheckLogin(cred.Username, cred.Password), cred.Username)
				assert.ErrorIs(t, c.CheckLogin(cred.Username, cred.Password+"!"), ErrLoginFailed, cred.Username)
			}

			assert.ErrorIs(t, c.CheckLogin("bob", "kitten"), ErrAccountNotFound)
			assert.ErrorIs(t, c.CheckLogin("", "kitten"), ErrInvalidUsername)
			assert.ErrorIs(t, c.CheckLogin("alice", ""), ErrInvalidPassword)
		})
	}
}

func TestCreateAccountErrors(t *testing.T) {
	c := newTestContext(t, 2, 0)
	require.NoError(t, c.CreateAccount("admin", "pw", 1))

	assert.ErrorIs(t, c.CreateAccount("admin", "other", 1), ErrAccountExists)
	assert.ErrorIs(t, c.CreateAccount("", "pw", 1), ErrInvalidUsername)
	assert.ErrorIs(t, c.CreateAccount("bob", "", 1), ErrInvalidPassword)
	assert.Error(t, c.CreateAccount("bob", "pw", -1))
}

func TestAccountsAndInfo(t *testing.T) {
	c := newTestContext(t, 3, 1)
	require.NoError(t, c.CreateAccount("zed", "pw", 3))
	require.NoError(t, c.CreateAccount("amy", "pw", 0))

	assert.Equal(t, []AccountInfo{
		{Username: "amy", Kind: KindShielded, Shares: 0},
		{Username: "zed", Kind: KindThreshold, Shares: 3},
	}, c.Accounts())

	assert.Equal(t, Info{
		Threshold:      3,
		CheckBits:      1,
		Iterations:     1,
		Locked:         false,
		Accounts:       2,
		NextShareIndex: 4,
	}, c.Info())
}

func TestShareIndexExhausted(t *testing.T) {
	c := newTestContext(t, 1, 0)

	require.NoError(t, c.CreateAccount("admin", "pw", MaxShareIndex))
	assert.ErrorIs(t, c.CreateAccount("root", "pw", 1), ErrShareIndexExhausted)

	// shielded accounts take no share index
	assert.NoError(t, c.CreateAccount("alice", "pw", 0))
	assert.NoError(t, c.CheckLogin("admin", "pw"))
}

func TestLockedWithoutCheckBits(t *testing.T) {
	c := newTestContext(t, 2, 0)
	require.NoError(t, c.CreateAccount("admin", "pw1", 1))
	require.NoError(t, c.CreateAccount("root", "pw2", 1))

	loaded := reload(t, c)
	assert.True(t, loaded.Locked())

	assert.ErrorIs(t, loaded.CheckLogin("admin", "pw1"), ErrContextLocked)
	assert.ErrorIs(t, loaded.CreateAccount("bob", "pw", 1), ErrContextLocked)
	assert.ErrorIs(t, loaded.CheckLogin("nobody", "pw"), ErrAccountNotFound)
}

func TestLockedWithCheckBits(t *testing.T) {
	c := newTestContext(t, 2, MaxCheckBits)
	require.NoError(t, c.CreateAccount("admin", "pw1", 1))
	require.NoError(t, c.CreateAccount("alice", "kitten", 0))

	c.Lock()
	assert.True(t, c.Locked())

	assert.NoError(t, c.CheckLogin("admin", "pw1"))
	assert.NoError(t, c.CheckLogin("alice", "kitten"))
	assert.ErrorIs(t, c.CheckLogin("admin", "wrong"), ErrLoginFailed)
	assert.ErrorIs(t, c.CheckLogin("alice", "wrong"), ErrLoginFailed)
}

func TestStoreReloadUnlock(t *testing.T) {
	c := newTestContext(t, 2, 0)
	require.NoError(t, c.CreateAccount("admin", "correct horse", 1))
	require.NoError(t, c.CreateAccount("root", "battery staple", 1))
	require.NoError(t, c.CreateAccount("alice", "kitten", 0))
	secret := append([]byte(nil), c.secret...)

	loaded := reload(t, c)
	assert.Equal(t, c.Accounts(), loaded.Accounts())
	assert.Equal(t, 1, loaded.Info().Iterations)

	require.NoError(t, loaded.Unlock([]Credential{
		{"admin", "correct horse"},
		{"root", "battery staple"},
	}))
	assert.False(t, loaded.Locked())
	assert.Equal(t, secret, loaded.secret)

	assert.NoError(t, loaded.CheckLogin("alice", "kitten"))
	assert.NoError(t, loaded.CheckLogin("root", "battery staple"))
	assert.ErrorIs(t, loaded.CheckLogin("alice", "cat"), ErrLoginFailed)

	// unlocking twice is a no-op
	assert.NoError(t, loaded.Unlock(nil))
}

func TestUnlockThenAddAccount(t *testing.T) {
	c := newTestContext(t, 2, 0)
	require.NoError(t, c.CreateAccount("admin", "pw-admin", 1))
	require.NoError(t, c.CreateAccount("root", "pw-root", 1))

	loaded := reload(t, c)
	require.NoError(t, loaded.Unlock([]Credential{{"admin", "pw-admin"}, {"root", "pw-root"}}))
	require.NoError(t, loaded.CreateAccount("carol", "pw-carol", 1))
	require.NoError(t, loaded.CreateAccount("dave", "pw-dave", 0))

	// a share dealt after reload lies on the original polynomial
	again := reload(t, loaded)
	require.NoError(t, again.Unlock([]Credential{{"carol", "pw-carol"}, {"admin", "pw-admin"}}))
	assert.NoError(t, again.CheckLogin("dave", "pw-dave"))
	assert.NoError(t, again.CheckLogin("root", "pw-root"))
}

func TestUnlockErrors(t *testing.T) {
	c := newTestContext(t, 3, 0)
	require.NoError(t, c.CreateAccount("admin", "pw-admin", 2))
	require.NoError(t, c.CreateAccount("root", "pw-root", 1))
	require.NoError(t, c.CreateAccount("bob", "pw-bob", 1))
	require.NoError(t, c.CreateAccount("alice", "pw-alice", 0))

	tests := []struct {
		name    string
		creds   []Credential
		wantErr error
		cause   error
	}{
		{
			name:    "no credentials",
			wantErr: ErrInsufficientShares,
		},
		{
			name:    "too few shares",
			creds:   []Credential{{"admin", "pw-admin"}},
			wantErr: ErrInsufficientShares,
		},
		{
			name:    "same account twice",
			creds:   []Credential{{"root", "pw-root"}, {"root", "pw-root"}},
			wantErr: ErrInsufficientShares,
		},
		{
			name:    "shielded accounts hold no share",
			creds:   []Credential{{"admin", "pw-admin"}, {"alice", "pw-alice"}},
			wantErr: ErrInsufficientShares,
		},
		{
			name:    "unknown account",
			creds:   []Credential{{"admin", "pw-admin"}, {"eve", "pw"}},
			wantErr: ErrAccountNotFound,
		},
		{
			name:    "wrong password at threshold",
			creds:   []Credential{{"admin", "pw-admin"}, {"root", "wrong"}},
			wantErr: ErrSecretIntegrity,
		},
		{
			name:    "wrong password beyond threshold",
			creds:   []Credential{{"admin", "pw-admin"}, {"root", "pw-root"}, {"bob", "wrong"}},
			wantErr: ErrSecretIntegrity,
			cause:   shamir.ErrInconsistentShares,
		},
		{
			name:    "empty password",
			creds:   []Credential{{"admin", ""}},
			wantErr: ErrInvalidPassword,
		},
	}

	loaded := reload(t, c)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loaded.Unlock(tt.creds)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
			assert.True(t, loaded.Locked())
		})
	}

	require.NoError(t, loaded.Unlock([]Credential{{"admin", "pw-admin"}, {"bob", "pw-bob"}}))
}

func TestUnlockWithCheckBitsRejectsWrongPassword(t *testing.T) {
	c := newTestContext(t, 2, MaxCheckBits)
	require.NoError(t, c.CreateAccount("admin", "pw-admin", 1))
	require.NoError(t, c.CreateAccount("root", "pw-root", 1))

	loaded := reload(t, c)
	err := loaded.Unlock([]Credential{{"admin", "pw-admin"}, {"root", "wrong"}})
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.True(t, loaded.Locked())

	require.NoError(t, loaded.Unlock([]Credential{{"admin", "pw-admin"}, {"root", "pw-root"}}))
}

func TestSealedStore(t *testing.T) {
	c := newTestContext(t, 1, 0)
	require.NoError(t, c.CreateAccount("admin", "pw", 1))

	fs := storage.NewFileStorage(filepath.Join(t.TempDir(), "pph.sealed")).
		WithKDFParams(storage.KDFParams{Time: 1, Memory: 1024, Threads: 1})
	require.NoError(t, c.StoreTo(fs, []byte("operator")))

	_, err := ReloadFrom(fs, []byte("nope"))
	assert.ErrorIs(t, err, storage.ErrWrongPassphrase)

	loaded, err := ReloadFrom(fs, []byte("operator"))
	require.NoError(t, err)
	defer loaded.Close()

	require.NoError(t, loaded.Unlock([]Credential{{"admin", "pw"}}))
	assert.NoError(t, loaded.CheckLogin("admin", "pw"))
}

func TestReloadErrors(t *testing.T) {
	_, err := Reload(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	c := newTestContext(t, 2, 0)
	require.NoError(t, c.CreateAccount("admin", "pw", 1))
	require.NoError(t, c.CreateAccount("guest", "pw", 0))
	data, err := c.Marshal()
	require.NoError(t, err)

	shielded := func(f *fileFormat) *Entry {
		for _, acc := range f.Accounts {
			if acc.Kind == KindShielded {
				return &acc.Entries[0]
			}
		}
		t.Fatal("no shielded account")
		return nil
	}

	mutate := func(fn func(f *fileFormat)) []byte {
		var f fileFormat
		require.NoError(t, json.Unmarshal(data, &f))
		fn(&f)
		out, err := json.Marshal(f)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"garbage", []byte("{"), nil},
		{"future version", mutate(func(f *fileFormat) { f.Version = 2 }), ErrUnsupportedVersion},
		{"bad threshold", mutate(func(f *fileFormat) { f.Threshold = 0 }), ErrInvalidThreshold},
		{"bad check bits", mutate(func(f *fileFormat) { f.IsolatedCheckBits = 1 }), nil},
		{"bad iterations", mutate(func(f *fileFormat) { f.Iterations = 0 }), nil},
		{"huge iterations", mutate(func(f *fileFormat) { f.Iterations = MaxIterations + 1 }), nil},
		{"shielded with share index", mutate(func(f *fileFormat) { shielded(f).ShareIndex = 1 }), nil},
		{"share index in use", mutate(func(f *fileFormat) { f.NextIndex = 1 }), nil},
		{"duplicate account", mutate(func(f *fileFormat) { f.Accounts = append(f.Accounts, f.Accounts[0]) }), nil},
		{"unknown kind", mutate(func(f *fileFormat) { f.Accounts[0].Kind = "root" }), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWithIterationsBounds(t *testing.T) {
	for _, n := range []int{0, -1, MaxIterations + 1} {
		c, err := New(1, 0, WithIterations(n))
		require.NoError(t, err)
		assert.Equal(t, DefaultIterations, c.Info().Iterations, n)
		c.Close()
	}

	c, err := New(1, 0, WithIterations(MaxIterations))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, MaxIterations, c.Info().Iterations)
}

func TestConcurrentAccess(t *testing.T) {
	c := newTestContext(t, 2, 0)
	require.NoError(t, c.CreateAccount("admin", "pw", 2))

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- c.CreateAccount(fmt.Sprintf("user%02d", i), "pw", i%2)
		}(i)
		go func() {
			defer wg.Done()
			errs <- c.CheckLogin("admin", "pw")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, c.Accounts(), 21)
	assert.Equal(t, 13, c.Info().NextShareIndex)
}

func TestClose(t *testing.T) {
	c, err := New(1, 0, WithIterations(1))
	require.NoError(t, err)
	require.NoError(t, c.CreateAccount("admin", "pw", 1))

	c.Close()
	assert.True(t, c.Locked())
	assert.ErrorIs(t, c.CheckLogin("admin", "pw"), ErrClosed)
	assert.ErrorIs(t, c.CreateAccount("bob", "pw", 1), ErrClosed)
	assert.ErrorIs(t, c.Unlock(nil), ErrClosed)
	assert.ErrorIs(t, c.Store(filepath.Join(t.TempDir(), "x.json")), ErrClosed)

	// closing twice is safe
	c.Close()
}
