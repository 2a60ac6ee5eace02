//go:build integration

package store_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/geogate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStore_Integration(t *testing.T) {
	ctx := t.Context()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("geogate"),
		postgres.WithUsername("geogate"),
		postgres.WithPassword("geogate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, testcontainers.TerminateContainer(container))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := store.NewDatabase(ctx, dsn)
	require.NoError(t, err)

	ps := store.NewPostgresStore(pool, slog.Default())
	t.Cleanup(func() { _ = ps.Close() })
	require.NoError(t, ps.EnsureSchema(ctx))
	require.NoError(t, ps.EnsureSchema(ctx))

	t.Run("values round trip and expire", func(t *testing.T) {
		require.NoError(t, ps.Set(ctx, "address-search:a", []byte(`[]`), time.Hour))
		require.NoError(t, ps.Set(ctx, "address-search:b", []byte(`[1]`), time.Millisecond))
		time.Sleep(10 * time.Millisecond)

		value, err := ps.Get(ctx, "address-search:a")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[]`), value)

		_, err = ps.Get(ctx, "address-search:b")
		require.ErrorIs(t, err, store.ErrNotFound)

		removed, err := ps.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
	})

	t.Run("locks are exclusive", func(t *testing.T) {
		lock, err := ps.TryLock(ctx, "geogate:throttle:nominatim", 5*time.Second)
		require.NoError(t, err)

		_, err = ps.TryLock(ctx, "geogate:throttle:nominatim", 5*time.Second)
		require.ErrorIs(t, err, store.ErrLockHeld)

		require.NoError(t, lock.Release(ctx))

		again, err := ps.TryLock(ctx, "geogate:throttle:nominatim", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		_, err := ps.TryLock(ctx, "short", 10*time.Millisecond)
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)

		lock, err := ps.TryLock(ctx, "short", time.Second)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
	})
}
