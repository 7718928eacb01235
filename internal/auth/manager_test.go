package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/edubot/internal/database"
	"github.com/iliyamo/edubot/internal/model"
	"github.com/iliyamo/edubot/internal/repository"
	"github.com/iliyamo/edubot/internal/utils"
)

type testEnv struct {
	mgr      *Manager
	store    *repository.Store
	registry *MemoryRegistry
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		store:    repository.NewStore(db),
		registry: NewMemoryRegistry(),
		now:      time.Now(),
	}
	env.mgr, err = NewManager(env.store.Users, env.registry, Options{
		Secret:     []byte("test-secret-test-secret-test-sec"),
		TTL:        time.Hour,
		BcryptCost: bcrypt.MinCost,
		Now:        func() time.Time { return env.now },
	})
	require.NoError(t, err)
	return env
}

func (e *testEnv) register(t *testing.T, username string, role model.Role) model.User {
	t.Helper()
	u, err := e.mgr.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.edu",
		Password: "s3cret-pass",
		Role:     role,
		FullName: "Test " + username,
	})
	require.NoError(t, err)
	return u
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(nil, NewMemoryRegistry(), Options{})
	assert.Error(t, err)
}

func TestRegisterStoresHashOnly(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "alice", model.RoleStudent)

	assert.True(t, u.IsActive)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "s3cret-pass"))

	stored, err := env.store.Users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)
	assert.NotContains(t, stored.PasswordHash, "s3cret-pass")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "bob", model.RoleStudent)

	_, err := env.mgr.Register(ctx, RegisterInput{
		Username: "bob", Email: "different@example.edu", Password: "another-pass", Role: model.RoleFaculty, FullName: "Bob Two",
	})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	_, err = env.mgr.Register(ctx, RegisterInput{
		Username: "bobby", Email: "BOB@example.edu", Password: "another-pass", Role: model.RoleStudent, FullName: "Bobby",
	})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	var n int
	require.NoError(t, env.store.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := map[string]RegisterInput{
		"role":     {Username: "x1", Email: "x1@e.edu", Password: "pw", Role: model.Role("admin"), FullName: "X"},
		"username": {Username: "   ", Email: "x2@e.edu", Password: "pw", Role: model.RoleStudent, FullName: "X"},
		"email":    {Username: "x3", Email: "", Password: "pw", Role: model.RoleStudent, FullName: "X"},
		"password": {Username: "x4", Email: "x4@e.edu", Password: "", Role: model.RoleStudent, FullName: "X"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.mgr.Register(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "carol", model.RoleFaculty)

	got, sess, err := env.mgr.Authenticate(ctx, " carol ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.ID, sess.UserID)
	assert.Equal(t, model.RoleFaculty, sess.Role)
	assert.NotEmpty(t, sess.Token)
	assert.NotEmpty(t, sess.TokenID)
	assert.Empty(t, sess.ChatSessionID)
	require.NotNil(t, got.LastLoginAt)

	stored, err := env.store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.WithinDuration(t, env.now, *stored.LastLoginAt, time.Microsecond)

	_, _, err = env.mgr.Authenticate(ctx, "carol", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = env.mgr.Authenticate(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "dave", model.RoleStudent)
	require.NoError(t, env.mgr.SetActive(ctx, u.ID, false))

	_, _, err := env.mgr.Authenticate(ctx, "dave", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInactiveAccount)

	// a wrong password does not reveal the account state
	_, _, err = env.mgr.Authenticate(ctx, "dave", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, env.mgr.SetActive(ctx, u.ID, true))
	_, _, err = env.mgr.Authenticate(ctx, "dave", "s3cret-pass")
	assert.NoError(t, err)
}

func TestSetActiveUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	assert.ErrorIs(t, env.mgr.SetActive(context.Background(), "missing", false), ErrUserNotFound)
}

func TestCurrentUserAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "erin", model.RoleStudent)
	_, sess, err := env.mgr.Authenticate(ctx, "erin", "s3cret-pass")
	require.NoError(t, err)

	got, cur, err := env.mgr.CurrentUser(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, sess.TokenID, cur.TokenID)
	assert.Equal(t, sess.Token, cur.Token)

	require.NoError(t, env.mgr.Logout(ctx, sess.Token))
	_, _, err = env.mgr.CurrentUser(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// idempotent, and garbage is ignored
	assert.NoError(t, env.mgr.Logout(ctx, sess.Token))
	assert.NoError(t, env.mgr.Logout(ctx, "garbage"))
}

func TestCurrentUserRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "frank", model.RoleStudent)
	_, sess, err := env.mgr.Authenticate(ctx, "frank", "s3cret-pass")
	require.NoError(t, err)

	_, _, err = env.mgr.CurrentUser(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)

	// deactivated after login
	require.NoError(t, env.mgr.SetActive(ctx, u.ID, false))
	_, _, err = env.mgr.CurrentUser(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInactiveAccount)
	require.NoError(t, env.mgr.SetActive(ctx, u.ID, true))

	// expired
	env.now = env.now.Add(2 * time.Hour)
	_, _, err = env.mgr.CurrentUser(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCurrentUserNotRegistered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "gina", model.RoleStudent)

	// validly signed, but never put in the registry
	tok, err := utils.NewSessionToken(env.mgr.secret, u.ID, "student", time.Hour, env.now)
	require.NoError(t, err)
	_, _, err = env.mgr.CurrentUser(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestBindChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "hank", model.RoleStudent)
	_, sess, err := env.mgr.Authenticate(ctx, "hank", "s3cret-pass")
	require.NoError(t, err)

	bound, err := env.mgr.BindChat(ctx, sess.TokenID, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", bound)
	bound, err = env.mgr.BindChat(ctx, sess.TokenID, "chat-2")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", bound)

	_, cur, err := env.mgr.CurrentUser(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", cur.ChatSessionID)

	require.NoError(t, env.mgr.ReplaceChat(ctx, sess.TokenID, "chat-3"))
	_, cur, err = env.mgr.CurrentUser(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "chat-3", cur.ChatSessionID)
}

func TestAuthenticateRehashesOnCostChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "ivan", model.RoleStudent)
	require.Equal(t, bcrypt.MinCost, utils.HashCost(u.PasswordHash))

	stronger, err := NewManager(env.store.Users, env.registry, Options{
		Secret:     env.mgr.secret,
		BcryptCost: bcrypt.MinCost + 1,
	})
	require.NoError(t, err)

	got, _, err := stronger.Authenticate(ctx, "ivan", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, utils.HashCost(got.PasswordHash))

	stored, err := env.store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, got.PasswordHash, stored.PasswordHash)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "s3cret-pass"))

	// the original manager still accepts the password and moves it back
	_, _, err = env.mgr.Authenticate(ctx, "ivan", "s3cret-pass")
	require.NoError(t, err)
	stored, err = env.store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, utils.HashCost(stored.PasswordHash))
}
