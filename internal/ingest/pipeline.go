// Package ingest implements the usage-ingestion pipeline: fetch one
// day of interval readings from the scraper addon, reconcile them
// against the committed cumulative series, and append only the new,
// non-duplicate, non-null portion.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hfujita/wattsync/internal/statistics"
	"github.com/hfujita/wattsync/pkg/models"
)

// UsageFetcher fetches one calendar day of interval readings.
type UsageFetcher interface {
	FetchUsageForDate(ctx context.Context, date time.Time) (models.UsageBatch, error)
}

// SeriesStore is the slice of the statistics store the pipeline needs.
type SeriesStore interface {
	LastPointBefore(ctx context.Context, seriesID string, before time.Time) (*models.SeriesPoint, error)
	Append(ctx context.Context, seriesID, displayName string, points []models.SeriesPoint) (int, error)
}

// IssueReporter surfaces a persistent warning when an unattended run
// cannot fetch data.
type IssueReporter interface {
	ReportFetchFailure(ctx context.Context, seriesID string) error
}

// Status is the terminal state of one pipeline run.
type Status string

const (
	// StatusCommitted means new points were reconciled and appended.
	StatusCommitted Status = "committed"
	// StatusNoData means the fetch failed or returned nothing usable.
	StatusNoData Status = "no-data"
	// StatusAllNull means data arrived but every reading was null, so
	// there was nothing to commit. Distinct from a fetch failure: the
	// scraper worked, the day just carries no information.
	StatusAllNull Status = "all-null-skip"
)

// Outcome describes how a pipeline run ended.
type Outcome struct {
	Status    Status
	Committed int // points actually inserted; 0 on an idempotent re-run
}

// Params describes one pipeline invocation.
type Params struct {
	SeriesID    string
	DisplayName string
	TargetDate  time.Time
	// Unattended is true for scheduled runs: fetch failures then raise
	// a persistent issue instead of only a log line.
	Unattended bool
}

// Pipeline orchestrates one ingestion cycle. It owns no I/O of its own;
// all I/O failures are converted to outcomes or returned errors at the
// collaborator boundary, so a run can never take down the scheduler.
type Pipeline struct {
	fetcher UsageFetcher
	store   SeriesStore
	issues  IssueReporter
	log     *zap.Logger
}

// New creates a pipeline over the given collaborators.
func New(fetcher UsageFetcher, store SeriesStore, issues IssueReporter, log *zap.Logger) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		store:   store,
		issues:  issues,
		log:     log,
	}
}

// Run executes one ingestion cycle for the given series and date.
// Fetch failures and all-null batches are expected outcomes, not
// errors; only store failures are returned.
func (p *Pipeline) Run(ctx context.Context, params Params) (Outcome, error) {
	log := p.log.With(
		zap.String("series", params.SeriesID),
		zap.String("date", params.TargetDate.Format("2006-01-02")),
	)

	batch, err := p.fetcher.FetchUsageForDate(ctx, params.TargetDate)
	if err != nil {
		if params.Unattended {
			log.Warn("scheduled fetch failed, raising issue", zap.Error(err))
			if rerr := p.issues.ReportFetchFailure(ctx, params.SeriesID); rerr != nil {
				log.Error("recording fetch-failure issue", zap.Error(rerr))
			}
		} else {
			log.Info("fetch failed, nothing to ingest", zap.Error(err))
		}
		return Outcome{Status: StatusNoData}, nil
	}

	if !batch.HasUsage() {
		log.Info("all readings are null, skipping insert", zap.Int("records", len(batch)))
		return Outcome{Status: StatusAllNull}, nil
	}

	// Baseline relative to the batch's first timestamp, not the global
	// latest point, so a late backfill chains from the right place.
	last, err := p.store.LastPointBefore(ctx, params.SeriesID, batch[0].Timestamp)
	if err != nil {
		return Outcome{}, fmt.Errorf("querying baseline: %w", err)
	}

	baseline := 0.0
	if last != nil {
		baseline = last.Sum
	}

	points := statistics.Cumulate(baseline, batch)

	inserted, err := p.store.Append(ctx, params.SeriesID, params.DisplayName, points)
	if err != nil {
		return Outcome{}, fmt.Errorf("appending points: %w", err)
	}

	log.Info("committed usage data",
		zap.Float64("baseline", baseline),
		zap.Int("points", len(points)),
		zap.Int("inserted", inserted),
	)

	return Outcome{Status: StatusCommitted, Committed: inserted}, nil
}
