// Package service holds the chat workflow that sits between the HTTP
// handlers and the store, gateway and audit queue.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/edubot/internal/auth"
	"github.com/iliyamo/edubot/internal/gateway"
	"github.com/iliyamo/edubot/internal/model"
	"github.com/iliyamo/edubot/internal/queue"
	"github.com/iliyamo/edubot/internal/repository"
)

// ErrEmptyQuery is returned when neither text nor an image was sent.
var ErrEmptyQuery = errors.New("query text or image is required")

// TopUsersLimit is the size of the dashboard's most-active list.
const TopUsersLimit = 5

type SessionStore interface {
	Create(ctx context.Context, userID string) (model.ChatSession, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (model.ChatSession, error)
	ListByUser(ctx context.Context, userID string) ([]model.ChatSession, error)
}

type MessageStore interface {
	Append(ctx context.Context, in repository.NewMessage) (model.Message, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Message, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Message, error)
}

type AnalyticsStore interface {
	Increment(ctx context.Context, userID string, t model.MessageType) error
	Get(ctx context.Context, userID string) (model.AnalyticsCounter, error)
	ListAll(ctx context.Context) ([]model.UserAnalytics, error)
}

// SessionBinder attaches a chat session to a login session. BindChat only
// binds when nothing is bound yet and returns the id that is.
type SessionBinder interface {
	BindChat(ctx context.Context, tokenID, chatSessionID string) (string, error)
	ReplaceChat(ctx context.Context, tokenID, chatSessionID string) error
}

type Gateway interface {
	Generate(ctx context.Context, q gateway.Query) (string, error)
}

// Answer is the result of one query. AnalyticsRecorded is false when the
// message was stored but a follow-up step (session touch, counters or
// audit event) failed.
type Answer struct {
	Message           model.Message
	ChatSessionID     string
	AnalyticsRecorded bool
}

// Dashboard is the faculty view over every active user.
type Dashboard struct {
	TotalUsers   int
	TotalQueries int64
	TextQueries  int64
	ImageQueries int64
	TopUsers     []model.UserAnalytics
	Users        []model.UserAnalytics
}

type ChatService struct {
	sessions  SessionStore
	messages  MessageStore
	analytics AnalyticsStore
	binder    SessionBinder
	gw        Gateway
	pub       Publisher
	log       *slog.Logger
	now       func() time.Time
}

type ChatDeps struct {
	Sessions  SessionStore
	Messages  MessageStore
	Analytics AnalyticsStore
	Binder    SessionBinder
	Gateway   Gateway
	Publisher Publisher // nil means NopPublisher
	Logger    *slog.Logger
}

func NewChatService(d ChatDeps) *ChatService {
	if d.Publisher == nil {
		d.Publisher = NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &ChatService{
		sessions:  d.Sessions,
		messages:  d.Messages,
		analytics: d.Analytics,
		binder:    d.Binder,
		gw:        d.Gateway,
		pub:       d.Publisher,
		log:       d.Logger,
		now:       time.Now,
	}
}

// Ask answers q for the logged-in session and records it. Nothing is
// stored when the gateway fails. sess.ChatSessionID is filled in when
// this is the first query of the login session.
func (s *ChatService) Ask(ctx context.Context, sess *auth.Session, q gateway.Query) (Answer, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" && q.Image == nil {
		return Answer{}, ErrEmptyQuery
	}

	response, err := s.gw.Generate(ctx, q)
	if err != nil {
		s.log.Warn("gateway failed", "user_id", sess.UserID, "err", err)
		return Answer{}, err
	}

	chatID, err := s.ensureChat(ctx, sess)
	if err != nil {
		return Answer{}, err
	}

	in := repository.NewMessage{
		SessionID: chatID,
		UserID:    sess.UserID,
		Type:      model.MessageText,
		Content:   q.Text,
		Response:  response,
	}
	if q.Image != nil {
		in.Type = model.MessageImage
		in.ImageName = q.Image.Name
		if in.Content == "" {
			in.Content = gateway.ImageAnalysisRequest
		}
	}
	msg, err := s.messages.Append(ctx, in)
	if err != nil {
		return Answer{}, err
	}

	recorded := true
	if err := s.sessions.Touch(ctx, chatID); err != nil {
		s.log.Error("touch chat session failed", "user_id", sess.UserID, "chat_session_id", chatID, "err", err)
		recorded = false
	}
	if err := s.analytics.Increment(ctx, sess.UserID, msg.Type); err != nil {
		s.log.Error("analytics increment failed", "user_id", sess.UserID, "err", err)
		recorded = false
	}
	ev := queue.QueryRecordedEvent{
		MessageID:     msg.ID,
		ChatSessionID: chatID,
		UserID:        sess.UserID,
		Role:          string(sess.Role),
		MessageType:   string(msg.Type),
		ImageName:     msg.ImageName,
		QueryChars:    utf8.RuneCountInString(q.Text),
		ResponseChars: utf8.RuneCountInString(response),
		RecordedAt:    s.now().UTC().Format(time.RFC3339),
	}
	if err := s.pub.PublishQueryRecorded(ctx, ev); err != nil {
		s.log.Warn("publish query event failed", "user_id", sess.UserID, "message_id", msg.ID, "err", err)
		recorded = false
	}

	return Answer{Message: msg, ChatSessionID: chatID, AnalyticsRecorded: recorded}, nil
}

// NewChat starts a fresh chat session for the login session.
func (s *ChatService) NewChat(ctx context.Context, sess *auth.Session) (model.ChatSession, error) {
	cs, err := s.sessions.Create(ctx, sess.UserID)
	if err != nil {
		return model.ChatSession{}, err
	}
	if err := s.binder.ReplaceChat(ctx, sess.TokenID, cs.ID); err != nil {
		s.log.Warn("bind chat session failed", "user_id", sess.UserID, "err", err)
	}
	sess.ChatSessionID = cs.ID
	return cs, nil
}

// ChatSessions lists the user's chat sessions, most recently active first.
func (s *ChatService) ChatSessions(ctx context.Context, userID string) ([]model.ChatSession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// ChatMessages returns the messages of one of the user's chat sessions.
// Sessions of other users are reported as repository.ErrNotFound.
func (s *ChatService) ChatMessages(ctx context.Context, userID, chatID string) ([]model.Message, error) {
	cs, err := s.sessions.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if cs.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return s.messages.ListBySession(ctx, cs.ID)
}

// History returns the user's latest messages, newest first.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	return s.messages.ListByUser(ctx, userID, limit)
}

// SessionMessages returns the current chat session's messages in order;
// empty when no query has been made yet.
func (s *ChatService) SessionMessages(ctx context.Context, sess *auth.Session) ([]model.Message, error) {
	if sess.ChatSessionID == "" {
		return []model.Message{}, nil
	}
	return s.messages.ListBySession(ctx, sess.ChatSessionID)
}

func (s *ChatService) Analytics(ctx context.Context, userID string) (model.AnalyticsCounter, error) {
	return s.analytics.Get(ctx, userID)
}

// Dashboard aggregates counters across all active users.
func (s *ChatService) Dashboard(ctx context.Context) (Dashboard, error) {
	users, err := s.analytics.ListAll(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{TotalUsers: len(users), Users: users}
	for _, u := range users {
		d.TotalQueries += u.Counter.TotalQueries
		d.TextQueries += u.Counter.TextQueries
		d.ImageQueries += u.Counter.ImageQueries
	}
	// ListAll is already ordered by total queries
	top := users
	if len(top) > TopUsersLimit {
		top = top[:TopUsersLimit]
	}
	d.TopUsers = top
	return d, nil
}

// ensureChat returns the chat session bound to sess, creating one on the
// first query. Concurrent first queries of one login race on the bind;
// the loser drops its empty row and uses the winner's id.
func (s *ChatService) ensureChat(ctx context.Context, sess *auth.Session) (string, error) {
	if sess.ChatSessionID != "" {
		return sess.ChatSessionID, nil
	}
	cs, err := s.sessions.Create(ctx, sess.UserID)
	if err != nil {
		return "", err
	}
	bound, err := s.binder.BindChat(ctx, sess.TokenID, cs.ID)
	if err != nil {
		// the next query opens another chat session
		s.log.Warn("bind chat session failed", "user_id", sess.UserID, "err", err)
		sess.ChatSessionID = cs.ID
		return cs.ID, nil
	}
	if bound != cs.ID {
		if err := s.sessions.Delete(ctx, cs.ID); err != nil {
			s.log.Warn("drop unused chat session failed", "chat_session_id", cs.ID, "err", err)
		}
	}
	sess.ChatSessionID = bound
	return bound, nil
}
