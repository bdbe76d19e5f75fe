package conversionfeed

import (
	"time"

	"prescosync/lib/timezone"
)

// InitialEpoch is the migration boundary of the feed, conversions
// before it were imported by hand and must never re-enter the sheet.
var InitialEpoch = time.Date(2025, time.November, 1, 0, 0, 0, 0, timezone.Location)

// ResolveCutoff computes the inclusive lower bound for record
// eligibility: yesterday 00:00 JST, clamped to InitialEpoch. Repeated
// calls within one calendar day agree, and the bound never moves
// backwards as now advances.
func ResolveCutoff(now time.Time) time.Time {
	cutoff := timezone.YesterdayMidnight(now)
	if cutoff.Before(InitialEpoch) {
		return InitialEpoch
	}
	return cutoff
}
