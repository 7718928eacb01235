package repository

import (
	"context"
	"database/sql"
)

// Store bundles the repositories that share one database handle.
type Store struct {
	db        *sql.DB
	Users     *UserRepo
	Sessions  *ChatSessionRepo
	Messages  *MessageRepo
	Analytics *AnalyticsRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:        db,
		Users:     NewUserRepo(db),
		Sessions:  NewChatSessionRepo(db),
		Messages:  NewMessageRepo(db),
		Analytics: NewAnalyticsRepo(db),
	}
}

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return wrap("store.ping", s.db.PingContext(ctx))
}
