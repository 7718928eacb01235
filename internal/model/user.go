package model

import (
	"strings"
	"time"
)

// Role is the closed set of account roles. Access checks compare Role
// values at the routing boundary; handlers never compare raw strings.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
)

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleFaculty
}

func (r Role) String() string { return string(r) }

// User represents an account record as stored in the `users` table.
// The json tags are omitted on purpose; handlers build their own
// response types so the password hash never reaches a client.
//
// Fields:
//
//	ID           – UUID primary key.
//	Username     – unique login name.
//	Email        – unique, stored lower-cased.
//	PasswordHash – bcrypt hash; the plaintext is never stored.
//	Role         – student or faculty.
//	FullName     – display name.
//	Department   – optional; empty when not given.
//	CreatedAt    – registration time (UTC).
//	LastLoginAt  – time of the last successful authentication, nil before the first.
//	IsActive     – inactive accounts cannot authenticate.
type User struct {
	ID           string     // users.id
	Username     string     // users.username
	Email        string     // users.email
	PasswordHash string     // users.password_hash
	Role         Role       // users.role
	FullName     string     // users.full_name
	Department   string     // users.department (nullable)
	CreatedAt    time.Time  // users.created_at
	LastLoginAt  *time.Time // users.last_login_at (nullable)
	IsActive     bool       // users.is_active
}
