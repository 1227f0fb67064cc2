package statistics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hfujita/wattsync/pkg/models"
)

// Namespace prefixes every series id written by this program.
const Namespace = "wattsync"

const electricityUsageLabel = "electricity_usage"

// SeriesID returns the stable statistic id for an account's electricity
// usage series. The id must be entirely lowercase.
func SeriesID(account string) string {
	return fmt.Sprintf("%s:%s_%s", Namespace, strings.ToLower(account), electricityUsageLabel)
}

// Cumulate folds a day of interval readings into committed points,
// chaining the running sum from baseline. Records without a reading are
// skipped and produce no point, leaving a gap rather than a false zero.
// The fold is pure so the cumulative chain exists before any I/O.
func Cumulate(baseline float64, records models.UsageBatch) []models.SeriesPoint {
	points := make([]models.SeriesPoint, 0, len(records))
	sum := baseline
	for _, r := range records {
		if r.Usage == nil {
			continue
		}
		sum += *r.Usage
		points = append(points, models.SeriesPoint{
			Start: r.Timestamp.UTC(),
			State: *r.Usage,
			Sum:   sum,
		})
	}
	return points
}

// Store persists statistics series in SQLite. Timestamps are stored as
// unix seconds in UTC; (series_id, start_ts) is unique, so re-appending
// an already committed point is a no-op rather than a double count.
type Store struct {
	db *sql.DB
}

// NewStore initializes the statistics schema on conn and returns a Store.
func NewStore(conn *sql.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS series (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS statistics (
		series_id TEXT NOT NULL,
		start_ts INTEGER NOT NULL,
		state REAL NOT NULL,
		sum REAL NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (series_id, start_ts)
	);
	CREATE INDEX IF NOT EXISTS idx_statistics_published ON statistics(series_id, published);
	`

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("initializing statistics schema: %w", err)
	}

	return &Store{db: conn}, nil
}

// LastPointBefore returns the most recent committed point with a
// timestamp strictly before the given time, or the overall latest point
// when before is the zero time. It returns nil if the series has no
// matching point.
func (s *Store) LastPointBefore(ctx context.Context, seriesID string, before time.Time) (*models.SeriesPoint, error) {
	query := `
	SELECT start_ts, state, sum
	FROM statistics
	WHERE series_id = ? AND (? = 0 OR start_ts < ?)
	ORDER BY start_ts DESC
	LIMIT 1
	`

	var bound int64
	if !before.IsZero() {
		bound = before.UTC().Unix()
	}

	var startTS int64
	var point models.SeriesPoint
	err := s.db.QueryRowContext(ctx, query, seriesID, bound, bound).Scan(&startTS, &point.State, &point.Sum)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last point: %w", err)
	}

	point.Start = time.Unix(startTS, 0).UTC()
	return &point, nil
}

// Append commits new points to a series in one transaction, creating the
// series row on first use and refreshing its display name. Points whose
// timestamp is already committed are skipped, so a retried commit after
// a partial failure is safe. It returns the number of rows actually
// inserted.
func (s *Store) Append(ctx context.Context, seriesID, displayName string, points []models.SeriesPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, seriesID, displayName, now)
	if err != nil {
		return 0, fmt.Errorf("upserting series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO statistics (series_id, start_ts, state, sum, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range points {
		res, err := stmt.ExecContext(ctx, seriesID, p.Start.UTC().Unix(), p.State, p.Sum, now)
		if err != nil {
			return 0, fmt.Errorf("inserting point at %s: %w", p.Start.Format(time.RFC3339), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("checking insert result: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing points: %w", err)
	}

	return inserted, nil
}

// ListPoints returns the most recent committed points of a series in
// ascending timestamp order, capped at limit (0 means no cap).
func (s *Store) ListPoints(ctx context.Context, seriesID string, limit int) ([]models.SeriesPoint, error) {
	query := `
	SELECT start_ts, state, sum
	FROM (
		SELECT start_ts, state, sum
		FROM statistics
		WHERE series_id = ?
		ORDER BY start_ts DESC
		LIMIT ?
	)
	ORDER BY start_ts ASC
	`

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, seriesID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

// ListUnpublished returns committed points not yet pushed to Home
// Assistant, in ascending timestamp order.
func (s *Store) ListUnpublished(ctx context.Context, seriesID string) ([]models.SeriesPoint, error) {
	query := `
	SELECT start_ts, state, sum
	FROM statistics
	WHERE series_id = ? AND published = 0
	ORDER BY start_ts ASC
	`

	rows, err := s.db.QueryContext(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("querying unpublished points: %w", err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

// MarkPublished records that a point has been pushed to Home Assistant.
func (s *Store) MarkPublished(ctx context.Context, seriesID string, start time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE statistics SET published = 1 WHERE series_id = ? AND start_ts = ?
	`, seriesID, start.UTC().Unix())
	if err != nil {
		return fmt.Errorf("marking point as published: %w", err)
	}
	return nil
}

func scanPoints(rows *sql.Rows) ([]models.SeriesPoint, error) {
	var points []models.SeriesPoint
	for rows.Next() {
		var startTS int64
		var p models.SeriesPoint
		if err := rows.Scan(&startTS, &p.State, &p.Sum); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}
		p.Start = time.Unix(startTS, 0).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}
