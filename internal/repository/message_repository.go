package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/edubot/internal/model"
)

// DefaultHistoryLimit caps ListByUser when the caller passes limit <= 0.
const DefaultHistoryLimit = 50

// NewMessage carries the insert fields for a message row.
type NewMessage struct {
	SessionID string
	UserID    string
	Type      model.MessageType
	Content   string
	ImageName string
	Response  string
}

// MessageRepo persists rows of the 'messages' table. Rows are append-only.
type MessageRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db, now: time.Now} }

const messageColumns = "id, session_id, user_id, message_type, content, image_name, response, created_at"

// Append stores one query/response pair. Session and user must exist.
func (r *MessageRepo) Append(ctx context.Context, in NewMessage) (model.Message, error) {
	m := model.Message{
		ID:        uuid.NewString(),
		SessionID: in.SessionID,
		UserID:    in.UserID,
		Type:      in.Type,
		Content:   in.Content,
		ImageName: in.ImageName,
		Response:  in.Response,
		CreatedAt: r.now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") VALUES (?,?,?,?,?,?,?,?)",
		m.ID, m.SessionID, m.UserID, string(m.Type), m.Content, nullString(m.ImageName), m.Response, formatTime(m.CreatedAt))
	if err != nil {
		return model.Message{}, wrap("message.append", err)
	}
	return m, nil
}

// ListBySession returns a session's messages in insertion order.
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE session_id = ? ORDER BY seq ASC", sessionID)
	if err != nil {
		return nil, wrap("message.list_by_session", err)
	}
	return scanMessages("message.list_by_session", rows)
}

// ListByUser returns the user's latest messages across all sessions,
// newest first.
func (r *MessageRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE user_id = ? ORDER BY seq DESC LIMIT ?", userID, limit)
	if err != nil {
		return nil, wrap("message.list_by_user", err)
	}
	return scanMessages("message.list_by_user", rows)
}

func scanMessages(op string, rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()
	out := make([]model.Message, 0)
	for rows.Next() {
		var (
			m         model.Message
			typ       string
			imageName sql.NullString
			created   string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &typ, &m.Content, &imageName, &m.Response, &created); err != nil {
			return nil, wrap(op, err)
		}
		m.Type = model.MessageType(typ)
		m.ImageName = imageName.String
		t, err := parseTime(created)
		if err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}
		m.CreatedAt = t
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}
