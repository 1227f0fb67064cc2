package statistics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfujita/wattsync/internal/database"
	"github.com/hfujita/wattsync/pkg/models"
)

func f64(v float64) *float64 { return &v }

func newTestStore(t *testing.T) *Store {
	t.Helper()

	conn, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store, err := NewStore(conn)
	require.NoError(t, err)
	return store
}

func TestSeriesID(t *testing.T) {
	assert.Equal(t, "wattsync:home_electricity_usage", SeriesID("home"))
	// statistic ids must be entirely lowercase
	assert.Equal(t, "wattsync:myhome_electricity_usage", SeriesID("MyHome"))
}

func TestCumulate(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	points := Cumulate(100.0, models.UsageBatch{
		{Timestamp: t0, Usage: f64(1.0)},
		{Timestamp: t1, Usage: nil},
		{Timestamp: t2, Usage: f64(2.0)},
	})

	require.Len(t, points, 2, "null interval must produce no point")
	assert.Equal(t, models.SeriesPoint{Start: t0, State: 1.0, Sum: 101.0}, points[0])
	assert.Equal(t, models.SeriesPoint{Start: t2, State: 2.0, Sum: 103.0}, points[1])
}

func TestCumulateAllNull(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := Cumulate(50.0, models.UsageBatch{
		{Timestamp: t0, Usage: nil},
		{Timestamp: t0.Add(time.Hour), Usage: nil},
	})
	assert.Empty(t, points)
}

func TestCumulateSumsAreNonDecreasing(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	batch := models.UsageBatch{
		{Timestamp: t0, Usage: f64(0.2)},
		{Timestamp: t0.Add(time.Hour), Usage: f64(0)},
		{Timestamp: t0.Add(2 * time.Hour), Usage: f64(1.4)},
	}

	points := Cumulate(10.0, batch)
	require.Len(t, points, 3)
	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].Sum, points[i-1].Sum)
	}
	assert.InDelta(t, 11.6, points[len(points)-1].Sum, 1e-9)
}

func TestLastPointBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seriesID := SeriesID("home")

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	_, err := store.Append(ctx, seriesID, "Electricity Usage (home)", []models.SeriesPoint{
		{Start: t0, State: 1.0, Sum: 1.0},
		{Start: t1, State: 2.0, Sum: 3.0},
	})
	require.NoError(t, err)

	// zero time means overall latest
	last, err := store.LastPointBefore(ctx, seriesID, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, t1, last.Start)
	assert.Equal(t, 3.0, last.Sum)

	// "before" is strictly less-than: a point at the bound is excluded
	last, err = store.LastPointBefore(ctx, seriesID, t1)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, t0, last.Start)

	last, err = store.LastPointBefore(ctx, seriesID, t0)
	require.NoError(t, err)
	assert.Nil(t, last)

	last, err = store.LastPointBefore(ctx, "wattsync:other_electricity_usage", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestAppendSkipsDuplicateTimestamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seriesID := SeriesID("home")

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []models.SeriesPoint{
		{Start: t0, State: 1.0, Sum: 1.0},
		{Start: t0.Add(time.Hour), State: 2.0, Sum: 3.0},
	}

	inserted, err := store.Append(ctx, seriesID, "home", points)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// A retried commit is a no-op, never a double count.
	inserted, err = store.Append(ctx, seriesID, "home", points)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	stored, err := store.ListPoints(ctx, seriesID, 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 3.0, stored[1].Sum)
}

func TestAppendPartialOverlap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seriesID := SeriesID("home")

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, seriesID, "home", []models.SeriesPoint{
		{Start: t0, State: 1.0, Sum: 1.0},
	})
	require.NoError(t, err)

	// Overlapping re-append commits only the genuinely new point.
	inserted, err := store.Append(ctx, seriesID, "home", []models.SeriesPoint{
		{Start: t0, State: 1.0, Sum: 1.0},
		{Start: t0.Add(time.Hour), State: 2.0, Sum: 3.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestAppendEmptyIsNoop(t *testing.T) {
	store := newTestStore(t)

	inserted, err := store.Append(context.Background(), SeriesID("home"), "home", nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestSeriesAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, SeriesID("home"), "home", []models.SeriesPoint{{Start: t0, State: 1.0, Sum: 1.0}})
	require.NoError(t, err)
	_, err = store.Append(ctx, SeriesID("cottage"), "cottage", []models.SeriesPoint{{Start: t0, State: 9.0, Sum: 9.0}})
	require.NoError(t, err)

	last, err := store.LastPointBefore(ctx, SeriesID("home"), time.Time{})
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 1.0, last.Sum)
}

func TestPublishedFlow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seriesID := SeriesID("home")

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	_, err := store.Append(ctx, seriesID, "home", []models.SeriesPoint{
		{Start: t0, State: 1.0, Sum: 1.0},
		{Start: t1, State: 2.0, Sum: 3.0},
	})
	require.NoError(t, err)

	pending, err := store.ListUnpublished(ctx, seriesID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, store.MarkPublished(ctx, seriesID, t0))

	pending, err = store.ListUnpublished(ctx, seriesID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, t1, pending[0].Start)
}

func TestListPointsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seriesID := SeriesID("home")

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var points []models.SeriesPoint
	sum := 0.0
	for i := 0; i < 5; i++ {
		sum += 1.0
		points = append(points, models.SeriesPoint{Start: t0.Add(time.Duration(i) * time.Hour), State: 1.0, Sum: sum})
	}

	_, err := store.Append(ctx, seriesID, "home", points)
	require.NoError(t, err)

	// limit keeps the most recent points, returned in ascending order
	got, err := store.ListPoints(ctx, seriesID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, t0.Add(3*time.Hour), got[0].Start)
	assert.Equal(t, t0.Add(4*time.Hour), got[1].Start)
}
