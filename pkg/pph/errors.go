package pph

import "errors"

var (
	// ErrInvalidThreshold is returned for a threshold outside 1..255.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidCheckBits is returned for an isolated check byte count outside 0..MaxCheckBits.
	ErrInvalidCheckBits = errors.New("invalid isolated check bits")

	// ErrInvalidUsername is returned for an empty or oversized username.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidPassword is returned for an empty password.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrAccountExists is returned when creating an account twice.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountNotFound is returned for an unknown username.
	ErrAccountNotFound = errors.New("account not found")

	// ErrLoginFailed is returned when a password does not verify.
	ErrLoginFailed = errors.New("login failed")

	// ErrContextLocked is returned when an operation needs the secret and the
	// database has not been unlocked.
	ErrContextLocked = errors.New("password database is locked")

	// ErrShareIndexExhausted is returned when all 255 share indices are in use.
	ErrShareIndexExhausted = errors.New("no share indices left")

	// ErrInsufficientShares is returned when unlock credentials cover fewer
	// than threshold distinct shares.
	ErrInsufficientShares = errors.New("insufficient shares to unlock")

	// ErrSecretIntegrity is returned when the reconstructed secret fails its
	// integrity check, which means at least one unlock password was wrong.
	ErrSecretIntegrity = errors.New("reconstructed secret failed integrity check")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("password database is closed")

	// ErrUnsupportedVersion is returned when reloading an unknown file version.
	ErrUnsupportedVersion = errors.New("unsupported database version")
)
