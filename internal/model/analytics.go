package model

import "time"

// AnalyticsCounter is the per-user running tally of queries. A user with
// no row yet is reported as the zero counter. Counts never decrease.
type AnalyticsCounter struct {
	UserID        string     // analytics_counters.user_id
	TotalQueries  int64      // analytics_counters.total_queries
	TextQueries   int64      // analytics_counters.text_queries
	ImageQueries  int64      // analytics_counters.image_queries
	LastQueryDate *time.Time // analytics_counters.last_query_date, day precision (UTC)
}

// UserAnalytics joins an active user's profile with their counter for the
// faculty dashboard.
type UserAnalytics struct {
	UserID     string
	Username   string
	FullName   string
	Role       Role
	Department string
	CreatedAt  time.Time
	Counter    AnalyticsCounter
}
