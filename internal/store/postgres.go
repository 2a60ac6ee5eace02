package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Database is the subset of *pgxpool.Pool used by PostgresStore.
type Database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

const schemaQuery = `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		expires_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS geocode_locks (
		key        TEXT PRIMARY KEY,
		token      TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	);
`

const getQuery = `
	SELECT value
	FROM geocode_cache
	WHERE key = $1 AND (expires_at IS NULL OR expires_at > now());
`

const setQuery = `
	INSERT INTO geocode_cache (key, value, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE
	SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at;
`

// lockQuery inserts the lease or takes over an expired one. No row is returned
// when an unexpired lease belongs to someone else.
const lockQuery = `
	INSERT INTO geocode_locks (key, token, expires_at)
	VALUES ($1, $2, now() + $3 * interval '1 millisecond')
	ON CONFLICT (key) DO UPDATE
	SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
	WHERE geocode_locks.expires_at <= now()
	RETURNING token;
`

const unlockQuery = `
	DELETE FROM geocode_locks
	WHERE key = $1 AND token = $2;
`

const purgeQuery = `
	DELETE FROM geocode_cache
	WHERE expires_at IS NOT NULL AND expires_at <= now();
`

// PostgresStore is a Store backed by two PostgreSQL tables, one for values and one for
// leases.
type PostgresStore struct {
	db  Database
	log *slog.Logger
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewDatabase opens a connection pool for dsn and verifies it with a ping.
func NewDatabase(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresStore creates a store on top of db. Call EnsureSchema before first use.
func NewPostgresStore(db Database, log *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log, now: time.Now}
}

// EnsureSchema creates the cache and lock tables when they do not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaQuery); err != nil {
		return fmt.Errorf("failed to create store schema: %w", err)
	}

	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(ctx, getQuery, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	return value, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		deadline := p.now().Add(ttl).UTC()
		expiresAt = &deadline
	}

	if _, err := p.db.Exec(ctx, setQuery, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

func (p *PostgresStore) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()

	var owner string
	err := p.db.QueryRow(ctx, lockQuery, key, token, ttl.Milliseconds()).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return &postgresLock{db: p.db, key: key, token: token}, nil
}

// PurgeExpired deletes expired cache entries and returns how many were removed.
func (p *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, purgeQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Run purges expired entries every interval until ctx is canceled.
func (p *PostgresStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.InfoContext(ctx, "Cache janitor started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			p.log.InfoContext(ctx, "Cache janitor stopped.")
			return
		case <-ticker.C:
			removed, err := p.PurgeExpired(ctx)
			if err != nil {
				p.log.ErrorContext(ctx, "Failed to purge expired cache entries", "error", err)
				continue
			}
			p.log.DebugContext(ctx, "Purged expired cache entries", "removed", removed)
		}
	}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.db.Close()
	return nil
}

type postgresLock struct {
	db    Database
	key   string
	token string
}

func (l *postgresLock) Release(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, unlockQuery, l.key, l.token); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return nil
}
