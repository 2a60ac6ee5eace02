// Package store provides the key/value backends shared by the response cache and the
// throttle: values with a TTL plus short-lived exclusive locks.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("key not found")
	// ErrLockHeld is returned by TryLock when another owner holds an unexpired lock.
	ErrLockHeld = errors.New("lock is held by another owner")
)

// Store is a key/value store with expiring entries and exclusive leases.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl of zero or less means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// TryLock acquires the lock named key for at most ttl without waiting.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	Ping(ctx context.Context) error
	Close() error
}

// Lock is an acquired lease. Release only frees the lock if it is still owned by
// this holder; an expired lease taken over by someone else is left alone.
type Lock interface {
	Release(ctx context.Context) error
}
