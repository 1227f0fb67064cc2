package models

import "time"

// UsageRecord is a single interval reading returned by the scraper addon.
// Usage is nil when the meter reported no reading for that interval.
type UsageRecord struct {
	Timestamp time.Time
	Usage     *float64
}

// UsageBatch is one calendar day of interval readings, ordered by
// ascending timestamp. It may contain gaps and nil usages.
type UsageBatch []UsageRecord

// HasUsage reports whether any record in the batch carries a reading.
func (b UsageBatch) HasUsage() bool {
	for _, r := range b {
		if r.Usage != nil {
			return true
		}
	}
	return false
}

// SeriesPoint is one committed row of a statistics series. Sum is the
// running total of all State values committed to the series up to and
// including Start.
type SeriesPoint struct {
	Start time.Time
	State float64
	Sum   float64
}
