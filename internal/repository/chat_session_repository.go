package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/edubot/internal/model"
)

// ChatSessionRepo persists rows of the 'chat_sessions' table.
type ChatSessionRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewChatSessionRepo(db *sql.DB) *ChatSessionRepo {
	return &ChatSessionRepo{db: db, now: time.Now}
}

// Create opens a new chat session for userID. The user must exist.
func (r *ChatSessionRepo) Create(ctx context.Context, userID string) (model.ChatSession, error) {
	now := r.now().UTC()
	s := model.ChatSession{
		ID:             uuid.NewString(),
		UserID:         userID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_sessions (id, user_id, created_at, last_activity_at) VALUES (?,?,?,?)",
		s.ID, s.UserID, formatTime(now), formatTime(now))
	if err != nil {
		return model.ChatSession{}, wrap("chat_session.create", err)
	}
	return s, nil
}

// Touch moves last_activity_at to now.
func (r *ChatSessionRepo) Touch(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE chat_sessions SET last_activity_at = ? WHERE id = ?",
		formatTime(r.now()), id)
	if err != nil {
		return wrap("chat_session.touch", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return wrap("chat_session.touch", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a chat session that holds no messages. Sessions with
// messages are never deleted and report ErrNotFound.
func (r *ChatSessionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM chat_sessions WHERE id = ? AND NOT EXISTS (SELECT 1 FROM messages WHERE session_id = ?)",
		id, id)
	if err != nil {
		return wrap("chat_session.delete", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return wrap("chat_session.delete", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID fetches one chat session.
func (r *ChatSessionRepo) GetByID(ctx context.Context, id string) (model.ChatSession, error) {
	var s model.ChatSession
	var created, last string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, created_at, last_activity_at FROM chat_sessions WHERE id = ?", id).
		Scan(&s.ID, &s.UserID, &created, &last)
	if err != nil {
		return model.ChatSession{}, wrap("chat_session.get_by_id", err)
	}
	if err := fillSessionTimes(&s, created, last); err != nil {
		return model.ChatSession{}, &StorageError{Op: "chat_session.get_by_id", Err: err}
	}
	return s, nil
}

// ListByUser returns the user's chat sessions, most recently active first.
func (r *ChatSessionRepo) ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, created_at, last_activity_at FROM chat_sessions WHERE user_id = ? ORDER BY last_activity_at DESC, created_at DESC",
		userID)
	if err != nil {
		return nil, wrap("chat_session.list_by_user", err)
	}
	defer rows.Close()

	out := make([]model.ChatSession, 0)
	for rows.Next() {
		var s model.ChatSession
		var created, last string
		if err := rows.Scan(&s.ID, &s.UserID, &created, &last); err != nil {
			return nil, wrap("chat_session.list_by_user", err)
		}
		if err := fillSessionTimes(&s, created, last); err != nil {
			return nil, &StorageError{Op: "chat_session.list_by_user", Err: err}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("chat_session.list_by_user", err)
	}
	return out, nil
}

func fillSessionTimes(s *model.ChatSession, created, last string) (err error) {
	if s.CreatedAt, err = parseTime(created); err != nil {
		return err
	}
	s.LastActivityAt, err = parseTime(last)
	return err
}
