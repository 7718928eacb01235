package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/edubot/internal/model"
)

// NewUser carries the insert fields for a user row. The password must
// already be hashed; the repository never sees plaintext.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Role         model.Role
	FullName     string
	Department   string
}

// UserRepo persists rows of the 'users' table.
type UserRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db, now: time.Now} }

const userColumns = "id, username, email, password_hash, role, full_name, department, created_at, last_login_at, is_active"

// Create inserts an active user and returns the stored row. It fails with
// ErrDuplicate if the username or the (normalised) email is taken.
func (r *UserRepo) Create(ctx context.Context, in NewUser) (model.User, error) {
	u := model.User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		FullName:     strings.TrimSpace(in.FullName),
		Department:   strings.TrimSpace(in.Department),
		CreatedAt:    r.now().UTC(),
		IsActive:     true,
	}

	var exists int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE username = ? OR email = ? LIMIT 1",
		u.Username, u.Email).Scan(&exists)
	switch {
	case err == nil:
		return model.User{}, ErrDuplicate
	case err != sql.ErrNoRows:
		return model.User{}, wrap("user.create", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO users (id, username, email, password_hash, role, full_name, department, created_at, is_active) VALUES (?,?,?,?,?,?,?,?,1)",
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.FullName, nullString(u.Department), formatTime(u.CreatedAt))
	if err != nil {
		// a concurrent insert can still win the race; the UNIQUE index catches it
		return model.User{}, wrap("user.create", err)
	}
	return u, nil
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ? LIMIT 1",
		strings.TrimSpace(username))
	return scanUser("user.get_by_username", row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return scanUser("user.get_by_id", row)
}

// UpdateLastLogin stamps the time of a successful authentication.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec1(ctx, "user.update_last_login",
		"UPDATE users SET last_login_at = ? WHERE id = ?", formatTime(at), id)
}

// UpdatePasswordHash replaces the stored hash, e.g. after a cost change.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.exec1(ctx, "user.update_password_hash",
		"UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
}

// SetActive enables or disables an account. Disabled accounts stay in the
// table; nothing is ever hard-deleted.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec1(ctx, "user.set_active",
		"UPDATE users SET is_active = ? WHERE id = ?", active, id)
}

// exec1 runs an UPDATE that must hit exactly one row.
func (r *UserRepo) exec1(ctx context.Context, op, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(op string, row *sql.Row) (model.User, error) {
	var (
		u          model.User
		role       string
		department sql.NullString
		createdAt  string
		lastLogin  sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.FullName,
		&department, &createdAt, &lastLogin, &u.IsActive)
	if err != nil {
		return model.User{}, wrap(op, err)
	}
	u.Role = model.Role(role)
	u.Department = department.String
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.User{}, &StorageError{Op: op, Err: err}
	}
	if u.LastLoginAt, err = parseNullTime(lastLogin); err != nil {
		return model.User{}, &StorageError{Op: op, Err: err}
	}
	return u, nil
}
