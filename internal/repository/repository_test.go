package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/edubot/internal/database"
	"github.com/iliyamo/edubot/internal/model"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "edubot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewStore(db)
	s.Users.now = clock(fixedNow)
	s.Sessions.now = clock(fixedNow)
	s.Messages.now = clock(fixedNow)
	s.Analytics.now = clock(fixedNow)
	return s
}

func createUser(t *testing.T, s *Store, username string) model.User {
	t.Helper()
	u, err := s.Users.Create(context.Background(), NewUser{
		Username:     username,
		Email:        username + "@example.edu",
		PasswordHash: "$2a$04$notarealhashnotarealhashnotarealhashnotarealhas",
		Role:         model.RoleStudent,
		FullName:     strings.ToUpper(username),
	})
	require.NoError(t, err)
	return u
}

func TestUserCreateAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Users.Create(ctx, NewUser{
		Username:     "  alice ",
		Email:        " Alice@Example.EDU ",
		PasswordHash: "hash-value",
		Role:         model.RoleFaculty,
		FullName:     " Alice Liddell ",
		Department:   "Mathematics",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "alice@example.edu", created.Email)
	assert.Equal(t, "Alice Liddell", created.FullName)
	assert.True(t, created.IsActive)
	assert.Nil(t, created.LastLoginAt)
	assert.Equal(t, fixedNow, created.CreatedAt)

	byID, err := s.Users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byName, err := s.Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created, byName)

	require.NoError(t, s.Users.UpdatePasswordHash(ctx, created.ID, "new-hash"))
	byID, err = s.Users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", byID.PasswordHash)
	assert.ErrorIs(t, s.Users.UpdatePasswordHash(ctx, "missing", "x"), ErrNotFound)
}

func TestUserOptionalDepartment(t *testing.T) {
	s := newTestStore(t)
	u := createUser(t, s, "bob")

	got, err := s.Users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Department)
}

func TestUserDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "carol")

	_, err := s.Users.Create(ctx, NewUser{Username: "carol", Email: "other@example.edu", PasswordHash: "x", Role: model.RoleStudent, FullName: "C"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.Users.Create(ctx, NewUser{Username: "carol2", Email: "CAROL@example.edu", PasswordHash: "x", Role: model.RoleStudent, FullName: "C"})
	assert.ErrorIs(t, err, ErrDuplicate)

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUserNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Users.GetByUsername(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Users.SetActive(ctx, "missing", false), ErrNotFound)
	assert.ErrorIs(t, s.Users.UpdateLastLogin(ctx, "missing", fixedNow), ErrNotFound)
}

func TestUserLastLoginAndActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "dave")

	login := fixedNow.Add(time.Hour)
	require.NoError(t, s.Users.UpdateLastLogin(ctx, u.ID, login))
	require.NoError(t, s.Users.SetActive(ctx, u.ID, false))

	got, err := s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.Equal(t, login, *got.LastLoginAt)
	assert.False(t, got.IsActive)

	require.NoError(t, s.Users.SetActive(ctx, u.ID, true))
	got, err = s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestChatSessionCreateTouchList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "erin")

	first, err := s.Sessions.Create(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, first.CreatedAt)
	assert.Equal(t, fixedNow, first.LastActivityAt)

	s.Sessions.now = clock(fixedNow.Add(time.Minute))
	second, err := s.Sessions.Create(ctx, u.ID)
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	s.Sessions.now = clock(later)
	require.NoError(t, s.Sessions.Touch(ctx, first.ID))

	got, err := s.Sessions.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, later, got.LastActivityAt)
	assert.Equal(t, fixedNow, got.CreatedAt)

	list, err := s.Sessions.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	assert.ErrorIs(t, s.Sessions.Touch(ctx, "missing"), ErrNotFound)
}

func TestChatSessionDeleteOnlyWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "erik")

	empty, err := s.Sessions.Create(ctx, u.ID)
	require.NoError(t, err)
	used, err := s.Sessions.Create(ctx, u.ID)
	require.NoError(t, err)
	_, err = s.Messages.Append(ctx, NewMessage{SessionID: used.ID, UserID: u.ID, Type: model.MessageText, Content: "q", Response: "a"})
	require.NoError(t, err)

	require.NoError(t, s.Sessions.Delete(ctx, empty.ID))
	_, err = s.Sessions.GetByID(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Sessions.Delete(ctx, used.ID), ErrNotFound)
	assert.ErrorIs(t, s.Sessions.Delete(ctx, "missing"), ErrNotFound)

	list, err := s.Sessions.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, used.ID, list[0].ID)

	none, err := s.Sessions.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestChatSessionRequiresUser(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Sessions.Create(context.Background(), "no-such-user")
	var se *StorageError
	assert.True(t, errors.As(err, &se), "want StorageError, got %v", err)
}

func TestMessagesKeepInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "frank")
	cs, err := s.Sessions.Create(ctx, u.ID)
	require.NoError(t, err)

	in := []NewMessage{
		{SessionID: cs.ID, UserID: u.ID, Type: model.MessageText, Content: "What is a derivative?", Response: "A rate of change."},
		{SessionID: cs.ID, UserID: u.ID, Type: model.MessageImage, Content: "Image analysis request", ImageName: "graph.png", Response: "A parabola."},
		{SessionID: cs.ID, UserID: u.ID, Type: model.MessageText, Content: "And an integral?", Response: "Accumulated area."},
	}
	var appended []model.Message
	for _, m := range in {
		got, err := s.Messages.Append(ctx, m)
		require.NoError(t, err)
		appended = append(appended, got)
	}

	list, err := s.Messages.ListBySession(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, appended, list)
	assert.Equal(t, "graph.png", list[1].ImageName)

	recent, err := s.Messages.ListByUser(ctx, u.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, appended[2].ID, recent[0].ID)
	assert.Equal(t, appended[1].ID, recent[1].ID)

	all, err := s.Messages.ListByUser(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMessageAppendUnknownSession(t *testing.T) {
	s := newTestStore(t)
	u := createUser(t, s, "gina")

	_, err := s.Messages.Append(context.Background(), NewMessage{
		SessionID: "missing", UserID: u.ID, Type: model.MessageText, Content: "q", Response: "a",
	})
	var se *StorageError
	require.True(t, errors.As(err, &se), "want StorageError, got %v", err)
	assert.Equal(t, "message.append", se.Op)
}

func TestMessagesEmptySession(t *testing.T) {
	s := newTestStore(t)
	list, err := s.Messages.ListBySession(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAnalyticsIncrement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "hank")

	zero, err := s.Analytics.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AnalyticsCounter{UserID: u.ID}, zero)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Analytics.Increment(ctx, u.ID, model.MessageText))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Analytics.Increment(ctx, u.ID, model.MessageImage))
	}

	c, err := s.Analytics.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, c.TotalQueries)
	assert.EqualValues(t, 3, c.TextQueries)
	assert.EqualValues(t, 2, c.ImageQueries)
	require.NotNil(t, c.LastQueryDate)
	assert.Equal(t, "2025-03-14", c.LastQueryDate.Format(time.DateOnly))
}

func TestAnalyticsIncrementRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	u := createUser(t, s, "ivy")
	err := s.Analytics.Increment(context.Background(), u.ID, model.MessageType("video"))
	var se *StorageError
	assert.True(t, errors.As(err, &se))
}

func TestAnalyticsListAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	quiet := createUser(t, s, "quiet")
	busy := createUser(t, s, "busy")
	gone := createUser(t, s, "gone")

	require.NoError(t, s.Analytics.Increment(ctx, busy.ID, model.MessageText))
	require.NoError(t, s.Analytics.Increment(ctx, busy.ID, model.MessageImage))
	require.NoError(t, s.Analytics.Increment(ctx, gone.ID, model.MessageText))
	require.NoError(t, s.Users.SetActive(ctx, gone.ID, false))

	all, err := s.Analytics.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, busy.ID, all[0].UserID)
	assert.EqualValues(t, 2, all[0].Counter.TotalQueries)
	assert.EqualValues(t, 1, all[0].Counter.ImageQueries)
	assert.NotNil(t, all[0].Counter.LastQueryDate)

	assert.Equal(t, quiet.ID, all[1].UserID)
	assert.Zero(t, all[1].Counter.TotalQueries)
	assert.Nil(t, all[1].Counter.LastQueryDate)
}

func TestStorageErrorHidesArguments(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.DB().Close())

	_, err := s.Users.Create(context.Background(), NewUser{
		Username: "jack", Email: "jack@example.edu", PasswordHash: "secret-hash-material", Role: model.RoleStudent, FullName: "Jack",
	})
	var se *StorageError
	require.True(t, errors.As(err, &se), "want StorageError, got %v", err)
	assert.NotContains(t, err.Error(), "secret-hash-material")
	assert.True(t, strings.HasPrefix(err.Error(), "storage: user.create"))
	assert.Error(t, s.Ping(context.Background()))
}
