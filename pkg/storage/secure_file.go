package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Davincible/pph/pkg/secure"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize  = 32
	NonceSize = 12
	KeySize   = 32

	sealedFormat = "pph-sealed-v1"
)

var (
	ErrNotFound        = errors.New("file does not exist")
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted file")
	ErrNotSealed       = errors.New("file is not sealed")
	ErrMalformed       = errors.New("malformed sealed file")
)

// KDFParams are the argon2id parameters used to derive a sealing key.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

var DefaultKDFParams = KDFParams{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
}

// MaxKDFParams bounds the parameters accepted from a sealed file header.
var MaxKDFParams = KDFParams{
	Time:    16,
	Memory:  1024 * 1024,
	Threads: 64,
}

// Validate checks that every parameter is positive and within MaxKDFParams.
func (p KDFParams) Validate() error {
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return fmt.Errorf("kdf parameters must be positive")
	}
	if p.Time > MaxKDFParams.Time || p.Memory > MaxKDFParams.Memory || p.Threads > MaxKDFParams.Threads {
		return fmt.Errorf("kdf parameters exceed time %d, memory %d KiB, threads %d",
			MaxKDFParams.Time, MaxKDFParams.Memory, MaxKDFParams.Threads)
	}
	return nil
}

type EncryptedData struct {
	Format     string    `json:"format"`
	KDF        KDFParams `json:"kdf"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

type FileStorage struct {
	filepath string
	kdf      KDFParams
}

func NewFileStorage(filepath string) *FileStorage {
	return &FileStorage{
		filepath: filepath,
		kdf:      DefaultKDFParams,
	}
}

// WithKDFParams overrides the argon2id parameters for files sealed from now on.
func (s *FileStorage) WithKDFParams(params KDFParams) *FileStorage {
	s.kdf = params
	return s
}

func (s *FileStorage) Path() string {
	return s.filepath
}

// Save writes data atomically with 0600 permissions.
func (s *FileStorage) Save(data []byte) error {
	dir := filepath.Dir(s.filepath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.filepath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpName, s.filepath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}

func (s *FileStorage) Load() ([]byte, error) {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.filepath)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// SaveSealed encrypts data with a key derived from passphrase before saving.
func (s *FileStorage) SaveSealed(data []byte, passphrase []byte) error {
	if len(passphrase) == 0 {
		return fmt.Errorf("passphrase cannot be empty")
	}

	salt, err := secure.SecureRandom(SaltSize)
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt, s.kdf)
	if err != nil {
		return err
	}

	nonce, err := secure.SecureRandom(gcm.NonceSize())
	if err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	encrypted := EncryptedData{
		Format:     sealedFormat,
		KDF:        s.kdf,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, data, []byte(sealedFormat)),
	}

	jsonData, err := json.Marshal(encrypted)
	if err != nil {
		return fmt.Errorf("failed to marshal encrypted data: %w", err)
	}

	return s.Save(jsonData)
}

func (s *FileStorage) LoadSealed(passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}

	jsonData, err := s.Load()
	if err != nil {
		return nil, err
	}

	encrypted, ok := parseSealed(jsonData)
	if !ok {
		return nil, ErrNotSealed
	}
	if len(encrypted.Salt) != SaltSize || len(encrypted.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: salt %d bytes, nonce %d bytes", ErrMalformed, len(encrypted.Salt), len(encrypted.Nonce))
	}
	if err := encrypted.KDF.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	gcm, err := newGCM(passphrase, encrypted.Salt, encrypted.KDF)
	if err != nil {
		return nil, err
	}
	if gcm.NonceSize() != len(encrypted.Nonce) {
		return nil, ErrMalformed
	}

	plaintext, err := gcm.Open(nil, encrypted.Nonce, encrypted.Ciphertext, []byte(sealedFormat))
	if err != nil {
		return nil, ErrWrongPassphrase
	}

	return plaintext, nil
}

// IsSealed reports whether the file holds a sealed envelope.
func (s *FileStorage) IsSealed() (bool, error) {
	data, err := s.Load()
	if err != nil {
		return false, err
	}
	_, ok := parseSealed(data)
	return ok, nil
}

func (s *FileStorage) Exists() bool {
	_, err := os.Stat(s.filepath)
	return err == nil
}

// Delete overwrites the file with random bytes before removing it.
func (s *FileStorage) Delete() error {
	if !s.Exists() {
		return nil
	}

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return fmt.Errorf("failed to read file for secure deletion: %w", err)
	}

	if _, err := rand.Read(data); err != nil {
		return fmt.Errorf("failed to overwrite file: %w", err)
	}

	if err := os.WriteFile(s.filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to overwrite file: %w", err)
	}

	return os.Remove(s.filepath)
}

func parseSealed(data []byte) (*EncryptedData, bool) {
	var encrypted EncryptedData
	if err := json.Unmarshal(data, &encrypted); err != nil {
		return nil, false
	}
	if encrypted.Format != sealedFormat {
		return nil, false
	}
	return &encrypted, true
}

func newGCM(passphrase, salt []byte, params KDFParams) (cipher.AEAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	key := argon2.IDKey(passphrase, salt, params.Time, params.Memory, params.Threads, KeySize)
	defer secure.Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
