package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refhub/citation-service/internal/domain"
)

func TestPostgres_Get(t *testing.T) {
	t.Run("returns live entry", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		cache := NewPostgres(mock)

		mock.ExpectQuery(`SELECT value, expires_at\s+FROM resolution_cache`).
			WithArgs("verify:doi:10.1/x").
			WillReturnRows(pgxmock.NewRows([]string{"value", "expires_at"}).
				AddRow([]byte("payload"), time.Now().Add(time.Hour)))

		got, err := cache.Get(context.Background(), "verify:doi:10.1/x")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing key reports not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		cache := NewPostgres(mock)

		mock.ExpectQuery(`SELECT value, expires_at\s+FROM resolution_cache`).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err = cache.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired entry is evicted and reported missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		cache := NewPostgres(mock)

		mock.ExpectQuery(`SELECT value, expires_at\s+FROM resolution_cache`).
			WithArgs("stale").
			WillReturnRows(pgxmock.NewRows([]string{"value", "expires_at"}).
				AddRow([]byte("payload"), time.Now().Add(-time.Minute)))
		mock.ExpectExec(`DELETE FROM resolution_cache`).
			WithArgs("stale").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		_, err = cache.Get(context.Background(), "stale")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates query errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		cache := NewPostgres(mock)

		mock.ExpectQuery(`SELECT value, expires_at\s+FROM resolution_cache`).
			WithArgs("k").
			WillReturnError(errors.New("connection reset"))

		_, err = cache.Get(context.Background(), "k")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgres_Put(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache := NewPostgres(mock)

	mock.ExpectExec(`INSERT INTO resolution_cache`).
		WithArgs("k", []byte("payload"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, cache.Put(context.Background(), "k", []byte("payload"), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache := NewPostgres(mock)

	mock.ExpectExec(`DELETE FROM resolution_cache`).
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, cache.Delete(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Sweep(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache := NewPostgres(mock)

	mock.ExpectExec(`DELETE FROM resolution_cache\s+WHERE expires_at < NOW\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	evicted, err := cache.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), evicted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
