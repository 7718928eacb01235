// Package queue defines message payloads exchanged over the message broker.
package queue

// QueryRecordedQueue is the durable queue carrying QueryRecordedEvent.
const QueryRecordedQueue = "query.recorded"

// QueryRecordedEvent is published after a query and its answer have been
// stored. It carries sizes rather than text so the audit trail never
// holds the conversation itself.
type QueryRecordedEvent struct {
	MessageID     string `json:"message_id"`
	ChatSessionID string `json:"chat_session_id"`
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	MessageType   string `json:"message_type"`
	ImageName     string `json:"image_name,omitempty"`
	QueryChars    int    `json:"query_chars"`
	ResponseChars int    `json:"response_chars"`
	RecordedAt    string `json:"recorded_at"`
}
