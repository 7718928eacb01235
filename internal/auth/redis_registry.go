package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/edubot/internal/model"
)

// RedisRegistry stores each session as a hash under
// "<prefix><token id>" with the key expiring together with the token, so
// several server instances can share logins.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

func NewRedisRegistry(client *redis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "edubot:session:"
	}
	return &RedisRegistry{client: client, prefix: prefix}
}

// bindChat sets the chat id only when none is bound yet and returns the
// bound id, or nil for a missing key. Both scripts check EXISTS first; a
// plain HSET would resurrect an expired session without a TTL.
var bindChat = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
local cur = redis.call('HGET', KEYS[1], 'chat_session_id')
if cur and cur ~= '' then
  return cur
end
redis.call('HSET', KEYS[1], 'chat_session_id', ARGV[1])
return ARGV[1]`)

var replaceChat = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  redis.call('HSET', KEYS[1], 'chat_session_id', ARGV[1])
  return 1
end
return 0`)

func (r *RedisRegistry) key(tokenID string) string { return r.prefix + tokenID }

func (r *RedisRegistry) Put(ctx context.Context, s Session) error {
	k := r.key(s.TokenID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, map[string]any{
			"user_id":         s.UserID,
			"role":            string(s.Role),
			"chat_session_id": s.ChatSessionID,
			"expires_at":      strconv.FormatInt(s.ExpiresAt.Unix(), 10),
		})
		p.ExpireAt(ctx, k, s.ExpiresAt)
		return nil
	})
	return err
}

func (r *RedisRegistry) Get(ctx context.Context, tokenID string) (Session, error) {
	vals, err := r.client.HGetAll(ctx, r.key(tokenID)).Result()
	if err != nil {
		return Session{}, err
	}
	if len(vals) == 0 || vals["user_id"] == "" {
		return Session{}, ErrSessionNotFound
	}
	exp, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return Session{}, errors.New("corrupt session entry")
	}
	s := Session{
		TokenID:       tokenID,
		UserID:        vals["user_id"],
		Role:          model.Role(vals["role"]),
		ChatSessionID: vals["chat_session_id"],
		ExpiresAt:     time.Unix(exp, 0).UTC(),
	}
	if !time.Now().Before(s.ExpiresAt) {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, tokenID string) error {
	return r.client.Del(ctx, r.key(tokenID)).Err()
}

func (r *RedisRegistry) BindChat(ctx context.Context, tokenID, chatSessionID string) (string, error) {
	id, err := bindChat.Run(ctx, r.client, []string{r.key(tokenID)}, chatSessionID).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisRegistry) ReplaceChat(ctx context.Context, tokenID, chatSessionID string) error {
	n, err := replaceChat.Run(ctx, r.client, []string{r.key(tokenID)}, chatSessionID).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
