// Package activitylog is the append-only record of addresses the bot has
// seen and symbol queries users have issued, plus the same-day report built
// from both. Writes are fire-and-forget: a storage failure is logged and
// swallowed, never surfaced to message handling.
package activitylog

import (
	"context"
	"log/slog"
	"time"

	"dexwatch/internal/db"
)

// reportingZone fixes "today" for the daily report to UTC+8 regardless of
// where the process runs.
var reportingZone = time.FixedZone("UTC+8", 8*60*60)

// Entry is one line of the daily report.
type Entry struct {
	DisplayName string `json:"display_name"`
	Value       string `json:"value"`
}

type Store struct {
	db  *db.DB
	log *slog.Logger
}

func NewStore(database *db.DB, logger *slog.Logger) *Store {
	return &Store{db: database, log: logger}
}

// InitSchema creates both tables if they do not exist. Safe to run on every
// startup; there are no migrations beyond this.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS addresses (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			address TEXT NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS queries (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			query TEXT NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_addresses_observed_at ON addresses(observed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_observed_at ON queries(observed_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordSighting appends an observed address. Failures are swallowed.
func (s *Store) RecordSighting(ctx context.Context, userID, displayName, address string) {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO addresses (user_id, display_name, address) VALUES ($1, $2, $3)`,
		userID, displayName, address,
	)
	if err != nil {
		s.log.Warn("failed_to_record_sighting", "user_id", userID, "error", err)
	}
}

// RecordQuery appends a raw symbol query. Failures are swallowed.
func (s *Store) RecordQuery(ctx context.Context, userID, displayName, query string) {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO queries (user_id, display_name, query) VALUES ($1, $2, $3)`,
		userID, displayName, query,
	)
	if err != nil {
		s.log.Warn("failed_to_record_query", "user_id", userID, "error", err)
	}
}

// TodaySummary returns the current reporting day's entries, all address
// sightings first and then all queries, each in insertion order. An empty
// day yields an empty slice, not an error.
func (s *Store) TodaySummary(ctx context.Context) ([]Entry, error) {
	start, end := dayBounds(time.Now())

	entries := []Entry{}
	for _, q := range []string{
		`SELECT display_name, address FROM addresses WHERE observed_at >= $1 AND observed_at < $2 ORDER BY id`,
		`SELECT display_name, query FROM queries WHERE observed_at >= $1 AND observed_at < $2 ORDER BY id`,
	} {
		rows, err := s.db.Pool.Query(ctx, q, start, end)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.DisplayName, &e.Value); err != nil {
				rows.Close()
				return nil, err
			}
			entries = append(entries, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// UserActivity returns everything a single user has logged across both
// tables, newest first, capped by limit.
func (s *Store) UserActivity(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT display_name, value FROM (
			SELECT display_name, address AS value, observed_at FROM addresses WHERE user_id = $1
			UNION ALL
			SELECT display_name, query AS value, observed_at FROM queries WHERE user_id = $1
		) combined ORDER BY observed_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.DisplayName, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// dayBounds returns the [start, start+24h) window of the reporting-zone
// calendar day containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(reportingZone)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, reportingZone)
	return start, start.Add(24 * time.Hour)
}
