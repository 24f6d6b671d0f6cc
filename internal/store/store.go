// Package store provides the persistence layer for facilities, basis
// reports, ZIP centroids, and saved-facility bookmarks, with Postgres
// and SQLite backends.
package store

import (
	"context"
	"time"

	"github.com/grainstats/basis-tracker/internal/geo"
	"github.com/grainstats/basis-tracker/internal/model"
)

// Store defines the persistence interface for the basis tracker.
type Store interface {
	// ZIP centroids
	GetZipCentroid(ctx context.Context, zip string) (*model.ZipCentroid, error)
	UpsertZipCentroids(ctx context.Context, rows []model.ZipCentroid) (int64, error)

	// Facilities
	CreateFacility(ctx context.Context, nf model.NewFacility) (*model.Facility, error)
	GetFacility(ctx context.Context, id string) (*model.Facility, error)
	FacilitiesInBounds(ctx context.Context, b geo.Bounds) ([]model.Facility, error)

	// Basis reports
	CreateBasisReport(ctx context.Context, nr model.NewBasisReport) (*model.BasisReport, error)
	ReportsSince(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth, since time.Time) ([]model.BasisReport, error)
	LastReportAt(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth) (*time.Time, error)

	// Saved facilities
	SaveFacility(ctx context.Context, userID, facilityID string) error
	IsFacilitySaved(ctx context.Context, userID, facilityID string) (bool, error)
	ListSavedFacilities(ctx context.Context, userID string) ([]model.Facility, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
