package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/grainstats/basis-tracker/internal/geo"
	"github.com/grainstats/basis-tracker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// single-machine backend; Postgres is preferred for shared deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS zip_centroids (
	zip TEXT PRIMARY KEY,
	lat REAL NOT NULL,
	lng REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS facilities (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	company     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL,
	state       TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	is_verified INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_facilities_lat_lng ON facilities(lat, lng);
CREATE INDEX IF NOT EXISTS idx_facilities_state ON facilities(state);

CREATE TABLE IF NOT EXISTS basis_reports (
	id            TEXT PRIMARY KEY,
	facility_id   TEXT NOT NULL REFERENCES facilities(id),
	commodity     TEXT NOT NULL,
	futures_month TEXT NOT NULL,
	basis_cents   INTEGER NOT NULL,
	observed_at   DATETIME NOT NULL,
	submitted_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	user_id       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_basis_reports_lookup
	ON basis_reports(facility_id, commodity, futures_month, observed_at DESC);

CREATE TABLE IF NOT EXISTS saved_facilities (
	user_id     TEXT NOT NULL,
	facility_id TEXT NOT NULL REFERENCES facilities(id),
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (user_id, facility_id)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetZipCentroid(ctx context.Context, zip string) (*model.ZipCentroid, error) {
	var c model.ZipCentroid
	err := s.db.QueryRowContext(ctx,
		`SELECT zip, lat, lng FROM zip_centroids WHERE zip = ?`,
		zip,
	).Scan(&c.Zip, &c.Lat, &c.Lng)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get zip centroid %s", zip)
	}
	return &c, nil
}

func (s *SQLiteStore) UpsertZipCentroids(ctx context.Context, centroids []model.ZipCentroid) (int64, error) {
	if len(centroids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO zip_centroids (zip, lat, lng) VALUES (?, ?, ?)
		 ON CONFLICT (zip) DO UPDATE SET lat = excluded.lat, lng = excluded.lng`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, c := range centroids {
		if _, err := stmt.ExecContext(ctx, c.Zip, c.Lat, c.Lng); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert centroid %s", c.Zip)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}

func (s *SQLiteStore) CreateFacility(ctx context.Context, nf model.NewFacility) (*model.Facility, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facilities (id, name, company, city, state, address, lat, lng, is_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		id, nf.Name, nf.Company, nf.City, nf.State, nf.Address, nf.Lat, nf.Lng, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert facility")
	}

	return &model.Facility{
		ID:        id,
		Name:      nf.Name,
		Company:   nf.Company,
		City:      nf.City,
		State:     nf.State,
		Address:   nf.Address,
		Lat:       nf.Lat,
		Lng:       nf.Lng,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	var f model.Facility
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, company, city, state, address, lat, lng, is_verified, created_at
		 FROM facilities WHERE id = ?`,
		id,
	).Scan(&f.ID, &f.Name, &f.Company, &f.City, &f.State, &f.Address, &f.Lat, &f.Lng, &f.IsVerified, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get facility %s", id)
	}
	return &f, nil
}

func (s *SQLiteStore) FacilitiesInBounds(ctx context.Context, b geo.Bounds) ([]model.Facility, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, company, city, state, address, lat, lng, is_verified, created_at
		 FROM facilities
		 WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
		 ORDER BY id`,
		b.MinLat, b.MaxLat, b.MinLng, b.MaxLng,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: facilities in bounds")
	}
	defer rows.Close() //nolint:errcheck

	var facilities []model.Facility
	for rows.Next() {
		var f model.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.Company, &f.City, &f.State, &f.Address,
			&f.Lat, &f.Lng, &f.IsVerified, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan facility")
		}
		facilities = append(facilities, f)
	}
	return facilities, eris.Wrap(rows.Err(), "sqlite: facilities in bounds iterate")
}

func (s *SQLiteStore) CreateBasisReport(ctx context.Context, nr model.NewBasisReport) (*model.BasisReport, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO basis_reports (id, facility_id, commodity, futures_month, basis_cents, observed_at, submitted_at, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nr.FacilityID, string(nr.Commodity), string(nr.FuturesMonth), nr.BasisCents, now, now, nr.UserID, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert basis report for facility %s", nr.FacilityID)
	}

	return &model.BasisReport{
		ID:           id,
		FacilityID:   nr.FacilityID,
		Commodity:    nr.Commodity,
		FuturesMonth: nr.FuturesMonth,
		BasisCents:   nr.BasisCents,
		ObservedAt:   now,
		SubmittedAt:  now,
		UserID:       nr.UserID,
		CreatedAt:    now,
	}, nil
}

func (s *SQLiteStore) ReportsSince(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth, since time.Time) ([]model.BasisReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, facility_id, commodity, futures_month, basis_cents, observed_at, submitted_at, user_id, created_at
		 FROM basis_reports
		 WHERE facility_id = ? AND commodity = ? AND futures_month = ? AND observed_at > ?
		 ORDER BY observed_at ASC`,
		facilityID, string(c), string(m), since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: reports since")
	}
	defer rows.Close() //nolint:errcheck

	var reports []model.BasisReport
	for rows.Next() {
		var r model.BasisReport
		if err := rows.Scan(&r.ID, &r.FacilityID, &r.Commodity, &r.FuturesMonth,
			&r.BasisCents, &r.ObservedAt, &r.SubmittedAt, &r.UserID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan basis report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: reports since iterate")
}

func (s *SQLiteStore) LastReportAt(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth) (*time.Time, error) {
	var last time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT observed_at FROM basis_reports
		 WHERE facility_id = ? AND commodity = ? AND futures_month = ?
		 ORDER BY observed_at DESC LIMIT 1`,
		facilityID, string(c), string(m),
	).Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: last report at")
	}
	return &last, nil
}

func (s *SQLiteStore) SaveFacility(ctx context.Context, userID, facilityID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO saved_facilities (user_id, facility_id, created_at) VALUES (?, ?, ?)`,
		userID, facilityID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save facility %s", facilityID)
}

func (s *SQLiteStore) IsFacilitySaved(ctx context.Context, userID, facilityID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM saved_facilities WHERE user_id = ? AND facility_id = ?`,
		userID, facilityID,
	).Scan(&n)
	return n > 0, eris.Wrap(err, "sqlite: is facility saved")
}

func (s *SQLiteStore) ListSavedFacilities(ctx context.Context, userID string) ([]model.Facility, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.name, f.company, f.city, f.state, f.address, f.lat, f.lng, f.is_verified, f.created_at
		 FROM saved_facilities sf
		 JOIN facilities f ON f.id = sf.facility_id
		 WHERE sf.user_id = ?
		 ORDER BY sf.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list saved facilities")
	}
	defer rows.Close() //nolint:errcheck

	var facilities []model.Facility
	for rows.Next() {
		var f model.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.Company, &f.City, &f.State, &f.Address,
			&f.Lat, &f.Lng, &f.IsVerified, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan saved facility")
		}
		facilities = append(facilities, f)
	}
	return facilities, eris.Wrap(rows.Err(), "sqlite: list saved facilities iterate")
}
