package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grainstats/basis-tracker/internal/geo"
	"github.com/grainstats/basis-tracker/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func createTestFacility(t *testing.T, s *SQLiteStore) *model.Facility {
	t.Helper()
	f, err := s.CreateFacility(context.Background(), model.NewFacility{
		Name:    "Heartland Co-op",
		Company: "Heartland",
		City:    "Des Moines",
		State:   "IA",
		Lat:     41.5868,
		Lng:     -93.625,
	})
	require.NoError(t, err)
	return f
}

func TestSQLiteStore_ZipCentroidRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := s.UpsertZipCentroids(ctx, []model.ZipCentroid{
		{Zip: "50309", Lat: 41.5868, Lng: -93.625},
		{Zip: "52401", Lat: 41.9751, Lng: -91.6656},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	c, err := s.GetZipCentroid(ctx, "50309")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, 41.5868, c.Lat, 1e-9)

	// Re-upserting the same zip updates rather than duplicating.
	_, err = s.UpsertZipCentroids(ctx, []model.ZipCentroid{
		{Zip: "50309", Lat: 41.6, Lng: -93.6},
	})
	require.NoError(t, err)
	c, err = s.GetZipCentroid(ctx, "50309")
	require.NoError(t, err)
	assert.InDelta(t, 41.6, c.Lat, 1e-9)

	missing, err := s.GetZipCentroid(ctx, "00000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_FacilityRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created := createTestFacility(t, s)
	assert.False(t, created.IsVerified)

	got, err := s.GetFacility(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Heartland Co-op", got.Name)
	assert.Equal(t, "IA", got.State)

	missing, err := s.GetFacility(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_FacilitiesInBounds(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	inside := createTestFacility(t, s)
	_, err := s.CreateFacility(ctx, model.NewFacility{
		Name: "Far Elevator", City: "Fargo", State: "ND", Lat: 46.8772, Lng: -96.7898,
	})
	require.NoError(t, err)

	got, err := s.FacilitiesInBounds(ctx, geo.Bounds{
		MinLat: 41.0, MaxLat: 42.0, MinLng: -94.0, MaxLng: -93.0,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inside.ID, got[0].ID)
}

func TestSQLiteStore_BasisReportWindow(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	f := createTestFacility(t, s)

	r, err := s.CreateBasisReport(ctx, model.NewBasisReport{
		FacilityID:   f.ID,
		Commodity:    model.CommodityCorn,
		FuturesMonth: model.MonthDecember,
		BasisCents:   -35,
		UserID:       "user-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)

	since := time.Now().UTC().Add(-time.Hour)
	got, err := s.ReportsSince(ctx, f.ID, model.CommodityCorn, model.MonthDecember, since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, -35, got[0].BasisCents)

	// A different commodity sees nothing.
	got, err = s.ReportsSince(ctx, f.ID, model.CommoditySoybeans, model.MonthDecember, since)
	require.NoError(t, err)
	assert.Empty(t, got)

	// A window starting after the report sees nothing.
	got, err = s.ReportsSince(ctx, f.ID, model.CommodityCorn, model.MonthDecember, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_LastReportAt(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	f := createTestFacility(t, s)

	last, err := s.LastReportAt(ctx, f.ID, model.CommodityCorn, model.MonthDecember)
	require.NoError(t, err)
	assert.Nil(t, last)

	r, err := s.CreateBasisReport(ctx, model.NewBasisReport{
		FacilityID:   f.ID,
		Commodity:    model.CommodityCorn,
		FuturesMonth: model.MonthDecember,
		BasisCents:   10,
		UserID:       "user-1",
	})
	require.NoError(t, err)

	last, err = s.LastReportAt(ctx, f.ID, model.CommodityCorn, model.MonthDecember)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, r.ObservedAt, *last, time.Second)
}

func TestSQLiteStore_SavedFacilities(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	f := createTestFacility(t, s)

	saved, err := s.IsFacilitySaved(ctx, "user-1", f.ID)
	require.NoError(t, err)
	assert.False(t, saved)

	require.NoError(t, s.SaveFacility(ctx, "user-1", f.ID))
	require.NoError(t, s.SaveFacility(ctx, "user-1", f.ID), "saving twice is a no-op")

	saved, err = s.IsFacilitySaved(ctx, "user-1", f.ID)
	require.NoError(t, err)
	assert.True(t, saved)

	list, err := s.ListSavedFacilities(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.ID, list[0].ID)

	other, err := s.ListSavedFacilities(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteStore_Ping(t *testing.T) {
	s := newTestSQLiteStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
