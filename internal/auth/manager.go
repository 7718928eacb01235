// Package auth implements registration, credential checks and login
// sessions on top of the user repository.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/edubot/internal/model"
	"github.com/iliyamo/edubot/internal/repository"
	"github.com/iliyamo/edubot/internal/utils"
)

// UserStore is the subset of the user repository the Manager needs.
type UserStore interface {
	Create(ctx context.Context, in repository.NewUser) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// Options configure a Manager. Zero values fall back to defaults.
type Options struct {
	Secret     []byte        // HS256 signing key; required
	TTL        time.Duration // session lifetime, default 24h
	BcryptCost int           // default bcrypt.DefaultCost
	Now        func() time.Time
	Logger     *slog.Logger
}

// RegisterInput is the data collected by the registration form.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	Role       model.Role
	FullName   string
	Department string
}

// Manager owns the login life cycle: register, authenticate, resolve the
// current user from a token, logout.
type Manager struct {
	users    UserStore
	registry Registry
	secret   []byte
	ttl      time.Duration
	cost     int
	now      func() time.Time
	log      *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewManager(users UserStore, registry Registry, opts Options) (*Manager, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		users:    users,
		registry: registry,
		secret:   opts.Secret,
		ttl:      opts.TTL,
		cost:     opts.BcryptCost,
		now:      opts.Now,
		log:      opts.Logger,
	}, nil
}

// Register creates an active account. Username and full name are
// trimmed, email is lower-cased, and only the bcrypt hash is stored.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Department = strings.TrimSpace(in.Department)

	switch {
	case in.Username == "":
		return model.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	case in.Email == "":
		return model.User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	case in.Password == "":
		return model.User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	case !in.Role.Valid():
		return model.User{}, fmt.Errorf("%w: role must be student or faculty", ErrInvalidInput)
	}

	hash, err := utils.HashPassword(in.Password, m.cost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return model.User{}, fmt.Errorf("%w: password is too long", ErrInvalidInput)
		}
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := m.users.Create(ctx, repository.NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		FullName:     in.FullName,
		Department:   in.Department,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return model.User{}, ErrDuplicateUser
	}
	if err != nil {
		return model.User{}, err
	}
	m.log.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Authenticate checks the credentials and opens a login session. The
// password is verified before the active flag so a wrong password never
// reveals that an account is disabled. The returned user carries the new
// last-login time.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (model.User, Session, error) {
	username = strings.TrimSpace(username)
	u, err := m.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		// burn the same bcrypt time as for a real account
		utils.VerifyPassword(m.dummy(), password)
		m.log.Warn("login failed", "reason", "unknown user")
		return model.User{}, Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		m.log.Warn("login failed", "user_id", u.ID, "reason", "bad password")
		return model.User{}, Session{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		m.log.Warn("login refused", "user_id", u.ID, "reason", "inactive")
		return model.User{}, Session{}, ErrInactiveAccount
	}

	now := m.now().UTC()
	if err := m.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return model.User{}, Session{}, err
	}
	u.LastLoginAt = &now
	m.rehash(ctx, &u, password)

	tok, err := utils.NewSessionToken(m.secret, u.ID, string(u.Role), m.ttl, now)
	if err != nil {
		return model.User{}, Session{}, fmt.Errorf("sign session token: %w", err)
	}
	s := Session{
		Token:     tok.Token,
		TokenID:   tok.ID,
		UserID:    u.ID,
		Role:      u.Role,
		ExpiresAt: tok.Exp,
	}
	if err := m.registry.Put(ctx, s); err != nil {
		return model.User{}, Session{}, fmt.Errorf("register session: %w", err)
	}
	m.log.Info("login", "user_id", u.ID, "role", u.Role)
	return u, s, nil
}

// CurrentUser resolves a bearer token to its user and session.
func (m *Manager) CurrentUser(ctx context.Context, token string) (model.User, Session, error) {
	claims, err := utils.ParseSessionToken(m.secret, token, m.now())
	if err != nil {
		return model.User{}, Session{}, ErrInvalidSession
	}
	s, err := m.registry.Get(ctx, claims.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return model.User{}, Session{}, ErrInvalidSession
	}
	if err != nil {
		return model.User{}, Session{}, fmt.Errorf("lookup session: %w", err)
	}
	if s.UserID != claims.Subject {
		return model.User{}, Session{}, ErrInvalidSession
	}
	u, err := m.users.GetByID(ctx, s.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, Session{}, ErrInvalidSession
	}
	if err != nil {
		return model.User{}, Session{}, err
	}
	if !u.IsActive {
		return model.User{}, Session{}, ErrInactiveAccount
	}
	s.Token = token
	s.Role = u.Role
	return u, s, nil
}

// Logout ends the session behind token. Unknown, expired or malformed
// tokens are ignored.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := utils.ParseSessionToken(m.secret, token, m.now())
	if err != nil {
		return nil
	}
	if err := m.registry.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.log.Info("logout", "user_id", claims.Subject)
	return nil
}

// BindChat attaches a chat session to the login session tokenID unless
// another one won the race, and returns the id that is bound.
func (m *Manager) BindChat(ctx context.Context, tokenID, chatSessionID string) (string, error) {
	return m.registry.BindChat(ctx, tokenID, chatSessionID)
}

// ReplaceChat points the login session at a new chat session.
func (m *Manager) ReplaceChat(ctx context.Context, tokenID, chatSessionID string) error {
	return m.registry.ReplaceChat(ctx, tokenID, chatSessionID)
}

// SetActive enables or disables an account. A disabled user's tokens stop
// resolving on their next request.
func (m *Manager) SetActive(ctx context.Context, userID string, active bool) error {
	err := m.users.SetActive(ctx, userID, active)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	m.log.Info("account status changed", "user_id", userID, "active", active)
	return nil
}

// rehash re-hashes the password when the stored hash was made with a
// different cost than the configured one. Failures keep the old hash.
func (m *Manager) rehash(ctx context.Context, u *model.User, password string) {
	if utils.HashCost(u.PasswordHash) == m.cost {
		return
	}
	hash, err := utils.HashPassword(password, m.cost)
	if err != nil {
		m.log.Warn("rehash password failed", "user_id", u.ID, "err", err)
		return
	}
	if err := m.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		m.log.Warn("store rehashed password failed", "user_id", u.ID, "err", err)
		return
	}
	u.PasswordHash = hash
	m.log.Info("password rehashed", "user_id", u.ID, "cost", m.cost)
}

func (m *Manager) dummy() string {
	m.dummyOnce.Do(func() {
		h, err := utils.HashPassword("edubot-dummy-password", m.cost)
		if err == nil {
			m.dummyHash = h
		}
	})
	return m.dummyHash
}
