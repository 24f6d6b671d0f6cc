package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/grainstats/basis-tracker/internal/basis"
	"github.com/grainstats/basis-tracker/internal/identity"
	"github.com/grainstats/basis-tracker/internal/store"
	"github.com/grainstats/basis-tracker/pkg/geocode"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "basis.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("postgres requires a connection string (BASIS_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initService builds the aggregation service with the configured window
// policy.
func initService(st store.Store) (*basis.Service, error) {
	w := basis.DefaultWindows()
	if cfg.Aggregate.StaleAfterDays > 0 {
		w.StaleAfter = time.Duration(cfg.Aggregate.StaleAfterDays) * 24 * time.Hour
	}
	if cfg.Aggregate.BasisWindowDays > 0 {
		w.BasisWindow = time.Duration(cfg.Aggregate.BasisWindowDays) * 24 * time.Hour
	}
	if cfg.Aggregate.TrendDays > 0 {
		w.TrendWindow = time.Duration(cfg.Aggregate.TrendDays) * 24 * time.Hour
	}
	if cfg.Aggregate.StatsDays > 0 {
		w.StatsWindow = time.Duration(cfg.Aggregate.StatsDays) * 24 * time.Hour
	}
	if cfg.Aggregate.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Aggregate.Timezone)
		if err != nil {
			return nil, eris.Wrapf(err, "load timezone %s", cfg.Aggregate.Timezone)
		}
		w.Loc = loc
	}
	return basis.NewService(st, basis.WithWindows(w)), nil
}

func initGeocoder() geocode.Client {
	timeout := time.Duration(cfg.Geocode.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RateLimitRPS),
		geocode.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

func initIdentity() (identity.Provider, error) {
	return identity.NewFileProvider(cfg.Identity.Path)
}
