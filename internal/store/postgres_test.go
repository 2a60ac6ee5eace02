package store_test

import (
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/UnknownOlympus/geogate/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	getQuery = `
	SELECT value
	FROM geocode_cache
	WHERE key = $1 AND (expires_at IS NULL OR expires_at > now());
`
	setQuery = `
	INSERT INTO geocode_cache (key, value, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE
	SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at;
`
	lockQuery   = `INSERT INTO geocode_locks (key, token, expires_at)`
	unlockQuery = `DELETE FROM geocode_locks`
	purgeQuery  = `DELETE FROM geocode_cache`
	schemaQuery = `CREATE TABLE IF NOT EXISTS geocode_cache`
)

func newMockStore(t *testing.T) (*store.PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return store.NewPostgresStore(mock, slog.Default()), mock
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
			WithArgs("k").
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("raw")))

		value, err := ps.Get(ctx, "k")

		require.NoError(t, err)
		assert.Equal(t, []byte("raw"), value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
			WithArgs("k").
			WillReturnError(pgx.ErrNoRows)

		_, err := ps.Get(ctx, "k")

		require.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - query", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
			WithArgs("k").
			WillReturnError(assert.AnError)

		_, err := ps.Get(ctx, "k")

		require.ErrorIs(t, err, assert.AnError)
		require.ErrorContains(t, err, "failed to read cache entry")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Set(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("with ttl", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectExec(regexp.QuoteMeta(setQuery)).
			WithArgs("k", []byte("raw"), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, ps.Set(ctx, "k", []byte("raw"), time.Hour))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - exec", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectExec(regexp.QuoteMeta(setQuery)).
			WithArgs("k", []byte("raw"), pgxmock.AnyArg()).
			WillReturnError(assert.AnError)

		err := ps.Set(ctx, "k", []byte("raw"), 0)

		require.ErrorIs(t, err, assert.AnError)
		require.ErrorContains(t, err, "failed to write cache entry")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_TryLock(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("acquired and released", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("l", pgxmock.AnyArg(), int64(5000)).
			WillReturnRows(pgxmock.NewRows([]string{"token"}).AddRow("token"))
		mock.ExpectExec(regexp.QuoteMeta(unlockQuery)).
			WithArgs("l", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		lock, err := ps.TryLock(ctx, "l", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("held by another owner", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("l", pgxmock.AnyArg(), int64(5000)).
			WillReturnError(pgx.ErrNoRows)

		_, err := ps.TryLock(ctx, "l", 5*time.Second)

		require.ErrorIs(t, err, store.ErrLockHeld)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - release", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("l", pgxmock.AnyArg(), int64(1000)).
			WillReturnRows(pgxmock.NewRows([]string{"token"}).AddRow("token"))
		mock.ExpectExec(regexp.QuoteMeta(unlockQuery)).
			WithArgs("l", pgxmock.AnyArg()).
			WillReturnError(assert.AnError)

		lock, err := ps.TryLock(ctx, "l", time.Second)
		require.NoError(t, err)

		err = lock.Release(ctx)
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Maintenance(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("ensure schema", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectExec(regexp.QuoteMeta(schemaQuery)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, ps.EnsureSchema(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("purge expired", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectExec(regexp.QuoteMeta(purgeQuery)).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		removed, err := ps.PurgeExpired(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping", func(t *testing.T) {
		t.Parallel()
		ps, mock := newMockStore(t)

		mock.ExpectPing().WillReturnError(assert.AnError)

		require.ErrorIs(t, ps.Ping(ctx), assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
