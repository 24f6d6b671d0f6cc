package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/grainstats/basis-tracker/internal/db"
	"github.com/grainstats/basis-tracker/internal/geo"
	"github.com/grainstats/basis-tracker/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_zip_centroid": `SELECT zip, lat, lng FROM zip_centroids WHERE zip = $1`,
	"get_facility":     `SELECT id, name, company, city, state, address, lat, lng, is_verified, created_at FROM facilities WHERE id = $1`,
	"insert_report":    `INSERT INTO basis_reports (id, facility_id, commodity, futures_month, basis_cents, observed_at, submitted_at, user_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"reports_since":    `SELECT id, facility_id, commodity, futures_month, basis_cents, observed_at, submitted_at, user_id, created_at FROM basis_reports WHERE facility_id = $1 AND commodity = $2 AND futures_month = $3 AND observed_at > $4 ORDER BY observed_at ASC`,
	"last_report_at":   `SELECT max(observed_at) FROM basis_reports WHERE facility_id = $1 AND commodity = $2 AND futures_month = $3`,
	"save_facility":    `INSERT INTO saved_facilities (user_id, facility_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id, facility_id) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk centroid loading).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS zip_centroids (
	zip TEXT PRIMARY KEY,
	lat DOUBLE PRECISION NOT NULL,
	lng DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS facilities (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	company     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL,
	state       TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	lat         DOUBLE PRECISION NOT NULL,
	lng         DOUBLE PRECISION NOT NULL,
	is_verified BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_facilities_lat_lng ON facilities(lat, lng);
CREATE INDEX IF NOT EXISTS idx_facilities_state ON facilities(state);

CREATE TABLE IF NOT EXISTS basis_reports (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	facility_id   TEXT NOT NULL REFERENCES facilities(id),
	commodity     TEXT NOT NULL,
	futures_month TEXT NOT NULL,
	basis_cents   INTEGER NOT NULL,
	observed_at   TIMESTAMPTZ NOT NULL,
	submitted_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	user_id       TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_basis_reports_lookup
	ON basis_reports(facility_id, commodity, futures_month, observed_at DESC);

CREATE TABLE IF NOT EXISTS saved_facilities (
	user_id     TEXT NOT NULL,
	facility_id TEXT NOT NULL REFERENCES facilities(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, facility_id)
);

CREATE INDEX IF NOT EXISTS idx_saved_facilities_user ON saved_facilities(user_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetZipCentroid(ctx context.Context, zip string) (*model.ZipCentroid, error) {
	var c model.ZipCentroid
	err := s.pool.QueryRow(ctx,
		`SELECT zip, lat, lng FROM zip_centroids WHERE zip = $1`,
		zip,
	).Scan(&c.Zip, &c.Lat, &c.Lng)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get zip centroid %s", zip)
	}
	return &c, nil
}

func (s *PostgresStore) UpsertZipCentroids(ctx context.Context, centroids []model.ZipCentroid) (int64, error) {
	rows := make([][]any, 0, len(centroids))
	for _, c := range centroids {
		rows = append(rows, []any{c.Zip, c.Lat, c.Lng})
	}

	// The initial load lands in an empty table, where straight COPY avoids
	// the temp-table round trip. Reloads fall through to the upsert.
	var existing int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM zip_centroids").Scan(&existing); err != nil {
		return 0, eris.Wrap(err, "postgres: count zip centroids")
	}
	if existing == 0 {
		n, err := db.CopyFrom(ctx, s.pool, "zip_centroids", []string{"zip", "lat", "lng"}, rows)
		return n, eris.Wrap(err, "postgres: copy zip centroids")
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "zip_centroids",
		Columns:      []string{"zip", "lat", "lng"},
		ConflictKeys: []string{"zip"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert zip centroids")
}

func (s *PostgresStore) CreateFacility(ctx context.Context, nf model.NewFacility) (*model.Facility, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO facilities (id, name, company, city, state, address, lat, lng, is_verified, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)`,
		id, nf.Name, nf.Company, nf.City, nf.State, nf.Address, nf.Lat, nf.Lng, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert facility")
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

func (s *PostgresStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	var f model.Facility
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, company, city, state, address, lat, lng, is_verified, created_at
		 FROM facilities WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.Name, &f.Company, &f.City, &f.State, &f.Address, &f.Lat, &f.Lng, &f.IsVerified, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get facility %s", id)
	}
	return &f, nil
}

func (s *PostgresStore) FacilitiesInBounds(ctx context.Context, b geo.Bounds) ([]model.Facility, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, company, city, state, address, lat, lng, is_verified, created_at
		 FROM facilities
		 WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4
		 ORDER BY id`,
		b.MinLat, b.MaxLat, b.MinLng, b.MaxLng,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: facilities in bounds")
	}
	defer rows.Close()

	var facilities []model.Facility
	for rows.Next() {
		var f model.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.Company, &f.City, &f.State, &f.Address,
			&f.Lat, &f.Lng, &f.IsVerified, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan facility")
		}
		facilities = append(facilities, f)
	}
	return facilities, eris.Wrap(rows.Err(), "postgres: facilities in bounds iterate")
}

func (s *PostgresStore) CreateBasisReport(ctx context.Context, nr model.NewBasisReport) (*model.BasisReport, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO basis_reports (id, facility_id, commodity, futures_month, basis_cents, observed_at, submitted_at, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, nr.FacilityID, string(nr.Commodity), string(nr.FuturesMonth), nr.BasisCents, now, now, nr.UserID, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert basis report for facility %s", nr.FacilityID)
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

func (s *PostgresStore) ReportsSince(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth, since time.Time) ([]model.BasisReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, facility_id, commodity, futures_month, basis_cents, observed_at, submitted_at, user_id, created_at
		 FROM basis_reports
		 WHERE facility_id = $1 AND commodity = $2 AND futures_month = $3 AND observed_at > $4
		 ORDER BY observed_at ASC`,
		facilityID, string(c), string(m), since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: reports since")
	}
	defer rows.Close()

	var reports []model.BasisReport
	for rows.Next() {
		var r model.BasisReport
		if err := rows.Scan(&r.ID, &r.FacilityID, &r.Commodity, &r.FuturesMonth,
			&r.BasisCents, &r.ObservedAt, &r.SubmittedAt, &r.UserID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan basis report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: reports since iterate")
}

func (s *PostgresStore) LastReportAt(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth) (*time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT max(observed_at) FROM basis_reports
		 WHERE facility_id = $1 AND commodity = $2 AND futures_month = $3`,
		facilityID, string(c), string(m),
	).Scan(&last)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last report at")
	}
	return last, nil
}

func (s *PostgresStore) SaveFacility(ctx context.Context, userID, facilityID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO saved_facilities (user_id, facility_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, facility_id) DO NOTHING`,
		userID, facilityID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save facility %s", facilityID)
}

func (s *PostgresStore) IsFacilitySaved(ctx context.Context, userID, facilityID string) (bool, error) {
	var saved bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM saved_facilities WHERE user_id = $1 AND facility_id = $2)`,
		userID, facilityID,
	).Scan(&saved)
	return saved, eris.Wrap(err, "postgres: is facility saved")
}

func (s *PostgresStore) ListSavedFacilities(ctx context.Context, userID string) ([]model.Facility, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.name, f.company, f.city, f.state, f.address, f.lat, f.lng, f.is_verified, f.created_at
		 FROM saved_facilities sf
		 JOIN facilities f ON f.id = sf.facility_id
		 WHERE sf.user_id = $1
		 ORDER BY sf.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list saved facilities")
	}
	defer rows.Close()

	var facilities []model.Facility
	for rows.Next() {
		var f model.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.Company, &f.City, &f.State, &f.Address,
			&f.Lat, &f.Lng, &f.IsVerified, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan saved facility")
		}
		facilities = append(facilities, f)
	}
	return facilities, eris.Wrap(rows.Err(), "postgres: list saved facilities iterate")
}
