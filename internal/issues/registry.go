package issues

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KindFetchFailure marks an unattended run that could not fetch usage
// data from the scraper addon.
const KindFetchFailure = "fetch_failure"

// Issue is a persistent, user-visible warning about a series. One row
// exists per series; repeated failures bump Occurrences instead of
// creating new rows.
type Issue struct {
	SeriesID    string
	Kind        string
	Message     string
	FirstSeen   time.Time
	LastSeen    time.Time
	Occurrences int
}

// Registry stores issues in SQLite, alongside the statistics tables.
type Registry struct {
	db *sql.DB
}

// NewRegistry initializes the issues schema on conn and returns a Registry.
func NewRegistry(conn *sql.DB) (*Registry, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS issues (
		series_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		occurrences INTEGER NOT NULL DEFAULT 1
	);
	`

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("initializing issues schema: %w", err)
	}

	return &Registry{db: conn}, nil
}

// ReportFetchFailure records that a scheduled fetch for the series
// failed. Repeated failures reuse the existing row, so a flaky scraper
// produces one warning per series, not a new one per run.
func (r *Registry) ReportFetchFailure(ctx context.Context, seriesID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	message := "Failed to fetch electricity usage from the scraper addon"

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO issues (series_id, kind, message, first_seen, last_seen, occurrences)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(series_id) DO UPDATE SET
			last_seen = excluded.last_seen,
			occurrences = occurrences + 1
	`, seriesID, KindFetchFailure, message, now, now)
	if err != nil {
		return fmt.Errorf("recording fetch failure: %w", err)
	}

	return nil
}

// List returns all open issues, most recently seen first.
func (r *Registry) List(ctx context.Context) ([]Issue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT series_id, kind, message, first_seen, last_seen, occurrences
		FROM issues
		ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying issues: %w", err)
	}
	defer rows.Close()

	var issues []Issue
	for rows.Next() {
		var issue Issue
		var firstSeen, lastSeen string
		if err := rows.Scan(&issue.SeriesID, &issue.Kind, &issue.Message, &firstSeen, &lastSeen, &issue.Occurrences); err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}
		if issue.FirstSeen, err = time.Parse(time.RFC3339, firstSeen); err != nil {
			return nil, fmt.Errorf("parsing first_seen: %w", err)
		}
		if issue.LastSeen, err = time.Parse(time.RFC3339, lastSeen); err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		issues = append(issues, issue)
	}

	return issues, rows.Err()
}

// Resolve clears the issue for a series. Resolving a series with no
// open issue is not an error.
func (r *Registry) Resolve(ctx context.Context, seriesID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("resolving issue: %w", err)
	}
	return nil
}
