package auth

import "errors"

// Failure kinds reported by the Manager. Storage failures are passed
// through as *repository.StorageError and are not part of this set.
var (
	ErrDuplicateUser      = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveAccount    = errors.New("account is deactivated")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")

	// ErrSessionNotFound is returned by a Registry for unknown or expired
	// entries. The Manager turns it into ErrInvalidSession.
	ErrSessionNotFound = errors.New("session not registered")
)
