// Package basis implements the aggregation semantics for crowdsourced
// basis reports: median current basis with staleness, daily trend
// buckets, and recent-activity stats.
package basis

import (
	"sort"
	"time"

	"github.com/grainstats/basis-tracker/internal/model"
)

// Median returns the median of values in integer cents. For an even
// count the two middle values are averaged, rounding halves away from
// zero. Median of an empty slice is 0; callers are expected to check
// for empty input first.
func Median(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	sum := sorted[mid-1] + sorted[mid]
	if sum%2 == 0 {
		return sum / 2
	}
	if sum > 0 {
		return (sum + 1) / 2
	}
	return (sum - 1) / 2
}

// IsStale reports whether an aggregate last updated at lastUpdated is
// older than staleAfter relative to now.
func IsStale(lastUpdated, now time.Time, staleAfter time.Duration) bool {
	return now.Sub(lastUpdated) > staleAfter
}

// BucketByDay groups reports into calendar-day buckets in loc, keyed by
// each report's observation time, and returns one trend point per day
// that has at least one report, in ascending day order. Days with no
// reports produce no bucket.
func BucketByDay(reports []model.BasisReport, loc *time.Location) []model.TrendPoint {
	byDay := make(map[string][]int)
	for _, r := range reports {
		day := r.ObservedAt.In(loc).Format("2006-01-02")
		byDay[day] = append(byDay[day], r.BasisCents)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]model.TrendPoint, 0, len(days))
	for _, day := range days {
		values := byDay[day]
		points = append(points, model.TrendPoint{
			Day:         day,
			MedianBasis: Median(values),
			ReportCount: len(values),
		})
	}
	return points
}
