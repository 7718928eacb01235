package repository

import (
	"database/sql"
	"fmt"
	"time"
)

// Timestamps are stored as TEXT in RFC 3339 (UTC) with a fixed nine-digit
// fraction, so string order is time order; dates use YYYY-MM-DD.
const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout      = time.DateOnly
)

func formatTime(t time.Time) string { return t.UTC().Format(timestampLayout) }

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseNullDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, ns.String, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", ns.String, err)
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
