package basis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grainstats/basis-tracker/internal/model"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"empty", nil, 0},
		{"single", []int{-25}, -25},
		{"odd ignores outlier", []int{10, -5, 1000}, 10},
		{"even exact", []int{10, 20}, 15},
		{"even rounds half up", []int{10, 15}, 13},
		{"even rounds half away from zero negative", []int{-10, -15}, -13},
		{"unsorted input", []int{30, -10, 20, 0, 5}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(tt.values))
		})
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	values := []int{30, -10, 20}
	Median(values)
	assert.Equal(t, []int{30, -10, 20}, values)
}

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	staleAfter := 14 * 24 * time.Hour

	assert.False(t, IsStale(now.Add(-13*24*time.Hour), now, staleAfter))
	assert.False(t, IsStale(now.Add(-staleAfter), now, staleAfter))
	assert.True(t, IsStale(now.Add(-staleAfter-time.Second), now, staleAfter))
}

func TestBucketByDay(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	day := func(d int, hour int) time.Time {
		return time.Date(2026, 3, d, hour, 0, 0, 0, chicago)
	}
	reports := []model.BasisReport{
		{BasisCents: 10, ObservedAt: day(10, 9)},
		{BasisCents: -5, ObservedAt: day(10, 12)},
		{BasisCents: 1000, ObservedAt: day(10, 16)},
		{BasisCents: -20, ObservedAt: day(12, 8)},
	}

	points := BucketByDay(reports, chicago)
	require.Len(t, points, 2)

	assert.Equal(t, "2026-03-10", points[0].Day)
	assert.Equal(t, 10, points[0].MedianBasis, "median, not mean, of [10 -5 1000]")
	assert.Equal(t, 3, points[0].ReportCount)

	assert.Equal(t, "2026-03-12", points[1].Day)
	assert.Equal(t, -20, points[1].MedianBasis)
	assert.Equal(t, 1, points[1].ReportCount)
}

func TestBucketByDaySplitsOnLocalMidnight(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	// 03:00 UTC on Mar 11 is still Mar 10 in Chicago (UTC-5 during DST).
	reports := []model.BasisReport{
		{BasisCents: 5, ObservedAt: time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)},
	}
	points := BucketByDay(reports, chicago)
	require.Len(t, points, 1)
	assert.Equal(t, "2026-03-10", points[0].Day)
}

func TestBucketByDayEmpty(t *testing.T) {
	assert.Empty(t, BucketByDay(nil, time.UTC))
}
