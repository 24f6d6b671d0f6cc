package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "zip_centroids", []string{"zip", "lat", "lng"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zip_centroids"}, []string{"zip", "lat", "lng"}).WillReturnResult(2)

	rows := [][]any{
		{"52401", 41.9779, -91.6656},
		{"50309", 41.5868, -93.6250},
	}
	n, err := CopyFrom(context.Background(), mock, "zip_centroids", []string{"zip", "lat", "lng"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zip_centroids"}, []string{"zip", "lat", "lng"}).
		WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"52401", 41.9779, -91.6656}}
	_, err = CopyFrom(context.Background(), mock, "zip_centroids", []string{"zip", "lat", "lng"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO zip_centroids")
	assert.NoError(t, mock.ExpectationsWereMet())
}
