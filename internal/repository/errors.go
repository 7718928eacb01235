// Package repository defines error types that are reused across multiple
// repositories. These values allow higher layers such as the auth manager
// and handlers to distinguish between different failure scenarios. For
// example, ErrDuplicate indicates that a unique column (username, email)
// already holds the value, while a *StorageError signals that the
// database itself failed (disk full, permission denied, corruption).
package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert would violate a UNIQUE
// constraint. The auth layer translates this into a duplicate-user error.
var ErrDuplicate = errors.New("duplicate")

// StorageError wraps a driver or I/O failure. Op names the repository
// operation; Err is the driver's cause. Query arguments are never part
// of the message, so hashes and other credentials cannot leak through it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// wrap converts a driver error into the repository vocabulary.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicate
	}
	return &StorageError{Op: op, Err: err}
}

// isUniqueViolation matches SQLite's "UNIQUE constraint failed" and
// primary key violations by message, the same way the driver reports them.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "constraint_primarykey")
}
