package auth

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/edubot/internal/model"
)

// Session is one login session. TokenID is the jti of the signed token
// and keys the registry; ChatSessionID is empty until the first query.
type Session struct {
	Token         string // raw bearer token; only set on values returned to callers
	TokenID       string
	UserID        string
	Role          model.Role
	ChatSessionID string
	ExpiresAt     time.Time
}

// Registry tracks live login sessions so that logout takes effect before
// the token expires.
type Registry interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, tokenID string) (Session, error)
	Delete(ctx context.Context, tokenID string) error
	// BindChat records chatSessionID unless the session already has one
	// and returns the id that is bound afterwards.
	BindChat(ctx context.Context, tokenID, chatSessionID string) (string, error)
	// ReplaceChat binds chatSessionID unconditionally.
	ReplaceChat(ctx context.Context, tokenID, chatSessionID string) error
}

// MemoryRegistry is a process-local Registry. Expired entries are
// dropped when they are next looked up.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]Session), now: time.Now}
}

func (r *MemoryRegistry) Put(_ context.Context, s Session) error {
	s.Token = ""
	r.mu.Lock()
	r.sessions[s.TokenID] = s
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, tokenID string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !r.now().Before(s.ExpiresAt) {
		delete(r.sessions, tokenID)
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, tokenID string) error {
	r.mu.Lock()
	delete(r.sessions, tokenID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) BindChat(_ context.Context, tokenID, chatSessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenID]
	if !ok {
		return "", ErrSessionNotFound
	}
	if s.ChatSessionID != "" {
		return s.ChatSessionID, nil
	}
	s.ChatSessionID = chatSessionID
	r.sessions[tokenID] = s
	return chatSessionID, nil
}

func (r *MemoryRegistry) ReplaceChat(_ context.Context, tokenID, chatSessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenID]
	if !ok {
		return ErrSessionNotFound
	}
	s.ChatSessionID = chatSessionID
	r.sessions[tokenID] = s
	return nil
}
