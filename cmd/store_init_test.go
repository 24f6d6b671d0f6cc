//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grainstats/basis-tracker/internal/config"
)

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "mongodb"},
	}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitStore_PostgresRequiresURL(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "postgres"},
	}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection string")
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestInitService_WindowOverrides(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
		Aggregate: config.AggregateConfig{
			StaleAfterDays:  7,
			BasisWindowDays: 10,
			Timezone:        "UTC",
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	svc, err := initService(st)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, svc.Windows().StaleAfter)
	assert.Equal(t, 10*24*time.Hour, svc.Windows().BasisWindow)
}

func TestInitService_BadTimezone(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
		Aggregate: config.AggregateConfig{Timezone: "Mars/Olympus"},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = initService(st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
}
