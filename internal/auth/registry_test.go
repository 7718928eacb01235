package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/edubot/internal/model"
)

func sampleSession(exp time.Time) Session {
	return Session{
		Token:     "raw-token",
		TokenID:   "jti-1",
		UserID:    "user-1",
		Role:      model.RoleStudent,
		ExpiresAt: exp.Truncate(time.Second).UTC(),
	}
}

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	s := sampleSession(time.Now().Add(time.Hour))
	require.NoError(t, r.Put(ctx, s))

	got, err := r.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Empty(t, got.Token, "raw token is not kept")

	bound, err := r.BindChat(ctx, "jti-1", "chat-9")
	require.NoError(t, err)
	assert.Equal(t, "chat-9", bound)
	got, err = r.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-9", got.ChatSessionID)

	_, err = r.BindChat(ctx, "nope", "chat-9")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.ReplaceChat(ctx, "nope", "chat-9"), ErrSessionNotFound)

	require.NoError(t, r.Delete(ctx, "jti-1"))
	require.NoError(t, r.Delete(ctx, "jti-1"))
	_, err = r.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryRegistryExpires(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }
	require.NoError(t, r.Put(ctx, sampleSession(now.Add(time.Minute))))

	now = now.Add(2 * time.Minute)
	_, err := r.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// the lookup dropped the entry, so binding finds nothing either
	_, err = r.BindChat(ctx, "jti-1", "chat-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func newRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRegistry(client, "test:session:"), mr
}

func TestRedisRegistry(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRegistry(t)
	s := sampleSession(time.Now().Add(time.Hour))
	require.NoError(t, r.Put(ctx, s))

	assert.True(t, mr.Exists("test:session:jti-1"))
	assert.Greater(t, mr.TTL("test:session:jti-1"), time.Duration(0))

	got, err := r.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, model.RoleStudent, got.Role)
	assert.Equal(t, s.ExpiresAt, got.ExpiresAt)
	assert.Empty(t, got.ChatSessionID)

	bound, err := r.BindChat(ctx, "jti-1", "chat-7")
	require.NoError(t, err)
	assert.Equal(t, "chat-7", bound)
	got, err = r.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-7", got.ChatSessionID)

	require.NoError(t, r.Delete(ctx, "jti-1"))
	_, err = r.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisRegistryBindMissing(t *testing.T) {
	r, mr := newRedisRegistry(t)
	ctx := context.Background()
	_, err := r.BindChat(ctx, "ghost", "chat-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.ReplaceChat(ctx, "ghost", "chat-1"), ErrSessionNotFound)
	assert.False(t, mr.Exists("test:session:ghost"), "bind must not create the key")
}

func TestRedisRegistryKeyExpires(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRegistry(t)
	require.NoError(t, r.Put(ctx, sampleSession(time.Now().Add(time.Hour))))

	mr.FastForward(2 * time.Hour)
	_, err := r.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// bindOnce checks that the first BindChat wins, later ones get the
// winner's id back, and ReplaceChat overrides it.
func bindOnce(t *testing.T, r Registry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.Put(ctx, sampleSession(time.Now().Add(time.Hour))))

	bound, err := r.BindChat(ctx, "jti-1", "chat-a")
	require.NoError(t, err)
	assert.Equal(t, "chat-a", bound)

	bound, err = r.BindChat(ctx, "jti-1", "chat-b")
	require.NoError(t, err)
	assert.Equal(t, "chat-a", bound)

	require.NoError(t, r.ReplaceChat(ctx, "jti-1", "chat-c"))
	got, err := r.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-c", got.ChatSessionID)

	bound, err = r.BindChat(ctx, "jti-1", "chat-d")
	require.NoError(t, err)
	assert.Equal(t, "chat-c", bound)
}

func TestMemoryRegistryBindOnce(t *testing.T) {
	bindOnce(t, NewMemoryRegistry())
}

func TestRedisRegistryBindOnce(t *testing.T) {
	r, _ := newRedisRegistry(t)
	bindOnce(t, r)
}

func TestMemoryRegistryConcurrentBind(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	require.NoError(t, r.Put(ctx, sampleSession(time.Now().Add(time.Hour))))

	const n = 8
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.BindChat(ctx, "jti-1", fmt.Sprintf("chat-%d", i))
			assert.NoError(t, err)
			results <- id
		}(i)
	}
	wg.Wait()
	close(results)

	got, err := r.Get(ctx, "jti-1")
	require.NoError(t, err)
	for id := range results {
		assert.Equal(t, got.ChatSessionID, id)
	}
}
