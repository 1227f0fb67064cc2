package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hfujita/wattsync/internal/scraper"
)

func TestDailySpec(t *testing.T) {
	spec, err := dailySpec("14:00:00")
	require.NoError(t, err)
	assert.Equal(t, "0 0 14 * * *", spec)

	spec, err = dailySpec("06:30:15")
	require.NoError(t, err)
	assert.Equal(t, "15 30 6 * * *", spec)
}

func TestDailySpecRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "14:00", "25:00:00", "2pm", "14:61:00"} {
		_, err := dailySpec(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestScheduleReplacesExistingSubscription(t *testing.T) {
	s := New(zap.NewNop())

	first, err := s.Schedule("home", "14:00:00", func() {})
	require.NoError(t, err)

	second, err := s.Schedule("home", "15:00:00", func() {})
	require.NoError(t, err)

	// Re-registering must not stack a second entry.
	assert.Equal(t, []string{"home"}, s.Accounts())

	// The stale handle cancels nothing.
	first.Cancel()
	assert.Equal(t, []string{"home"}, s.Accounts())

	second.Cancel()
	assert.Empty(t, s.Accounts())
}

func TestCancelIsIdempotent(t *testing.T) {
	s := New(zap.NewNop())

	sub, err := s.Schedule("home", "14:00:00", func() {})
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()
	assert.Empty(t, s.Accounts())
}

func TestAccountContextCloseUnsubscribes(t *testing.T) {
	s := New(zap.NewNop())

	client := scraper.New("http://localhost:3000", "user", "pass", "123")
	ac, err := s.Bind("home", client, "14:00:00", func() {})
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, s.Accounts())

	ac.Close()
	assert.Empty(t, s.Accounts())

	// Closing twice is safe.
	ac.Close()
}

func TestSchedulerTracksMultipleAccounts(t *testing.T) {
	s := New(zap.NewNop())

	_, err := s.Schedule("home", "14:00:00", func() {})
	require.NoError(t, err)
	_, err = s.Schedule("cottage", "15:00:00", func() {})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"home", "cottage"}, s.Accounts())
}
