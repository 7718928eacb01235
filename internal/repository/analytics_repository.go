package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/edubot/internal/model"
)

// AnalyticsRepo persists rows of the 'analytics_counters' table.
type AnalyticsRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db, now: time.Now} }

// Increment records one query of type t for userID. The row is created on
// the first call; the whole update is a single statement so concurrent
// increments cannot lose counts.
func (r *AnalyticsRepo) Increment(ctx context.Context, userID string, t model.MessageType) error {
	var text, image int
	switch t {
	case model.MessageText:
		text = 1
	case model.MessageImage:
		image = 1
	default:
		return &StorageError{Op: "analytics.increment", Err: fmt.Errorf("unknown message type %q", t)}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO analytics_counters (user_id, total_queries, text_queries, image_queries, last_query_date)
VALUES (?, 1, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    total_queries   = total_queries + 1,
    text_queries    = text_queries + excluded.text_queries,
    image_queries   = image_queries + excluded.image_queries,
    last_query_date = excluded.last_query_date`,
		userID, text, image, formatDate(r.now()))
	return wrap("analytics.increment", err)
}

// Get returns the user's counter, or a zero counter if none exists yet.
func (r *AnalyticsRepo) Get(ctx context.Context, userID string) (model.AnalyticsCounter, error) {
	c := model.AnalyticsCounter{UserID: userID}
	var last sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT total_queries, text_queries, image_queries, last_query_date FROM analytics_counters WHERE user_id = ?",
		userID).Scan(&c.TotalQueries, &c.TextQueries, &c.ImageQueries, &last)
	if err == sql.ErrNoRows {
		return c, nil
	}
	if err != nil {
		return model.AnalyticsCounter{}, wrap("analytics.get", err)
	}
	if c.LastQueryDate, err = parseNullDate(last); err != nil {
		return model.AnalyticsCounter{}, &StorageError{Op: "analytics.get", Err: err}
	}
	return c, nil
}

// ListAll returns every active user with their counters, most active
// first. Users who never asked anything appear with zero counts.
func (r *AnalyticsRepo) ListAll(ctx context.Context) ([]model.UserAnalytics, error) {
	const op = "analytics.list_all"
	rows, err := r.db.QueryContext(ctx, `
SELECT u.id, u.username, u.full_name, u.role, u.department, u.created_at,
       COALESCE(a.total_queries, 0), COALESCE(a.text_queries, 0), COALESCE(a.image_queries, 0),
       a.last_query_date
FROM users u
LEFT JOIN analytics_counters a ON a.user_id = u.id
WHERE u.is_active = 1
ORDER BY COALESCE(a.total_queries, 0) DESC, u.username ASC`)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := make([]model.UserAnalytics, 0)
	for rows.Next() {
		var (
			ua         model.UserAnalytics
			role       string
			department sql.NullString
			created    string
			last       sql.NullString
		)
		if err := rows.Scan(&ua.UserID, &ua.Username, &ua.FullName, &role, &department, &created,
			&ua.Counter.TotalQueries, &ua.Counter.TextQueries, &ua.Counter.ImageQueries, &last); err != nil {
			return nil, wrap(op, err)
		}
		ua.Role = model.Role(role)
		ua.Department = department.String
		ua.Counter.UserID = ua.UserID
		if ua.CreatedAt, err = parseTime(created); err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}
		if ua.Counter.LastQueryDate, err = parseNullDate(last); err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}
		out = append(out, ua)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}
