package model

import (
	"strings"
	"time"
)

// MessageType distinguishes plain text questions from image analysis requests.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// ParseMessageType normalises s and reports whether it names a known type.
func ParseMessageType(s string) (MessageType, bool) {
	t := MessageType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case MessageText, MessageImage:
		return t, true
	}
	return "", false
}

// ChatSession groups the messages of one login session. It is created
// on the first query after login (or on an explicit "new chat") and its
// LastActivityAt moves forward on every message.
type ChatSession struct {
	ID             string    // chat_sessions.id
	UserID         string    // chat_sessions.user_id
	CreatedAt      time.Time // chat_sessions.created_at
	LastActivityAt time.Time // chat_sessions.last_activity_at
}

// Message is one query/response pair. Rows are immutable once written.
type Message struct {
	ID        string      // messages.id
	SessionID string      // messages.session_id
	UserID    string      // messages.user_id
	Type      MessageType // messages.message_type
	Content   string      // messages.content: the user's text
	ImageName string      // messages.image_name: uploaded file name, image queries only
	Response  string      // messages.response: generated answer
	CreatedAt time.Time   // messages.created_at
}
