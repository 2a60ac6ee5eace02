// Package throttle enforces a minimum delay between outbound requests to the same
// provider. State lives in a shared store so every gateway instance sees it.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/UnknownOlympus/geogate/internal/store"
)

// Defaults for the provider lock.
const (
	DefaultLockTTL    = 5 * time.Second
	lockRetryInterval = 25 * time.Millisecond
	minTimestampTTL   = time.Minute
	keyPrefix         = "geogate:throttle:"
)

// Throttle decides whether a provider may be called now.
type Throttle struct {
	store    store.Store
	log      *slog.Logger
	lockTTL  time.Duration
	lockWait time.Duration
	now      func() time.Time
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithLockTTL sets the lease length of the per-provider lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(t *Throttle) {
		if ttl > 0 {
			t.lockTTL = ttl
		}
	}
}

// WithLockWait sets how long Allow keeps retrying a held lock. Zero means one attempt.
func WithLockWait(wait time.Duration) Option {
	return func(t *Throttle) {
		if wait >= 0 {
			t.lockWait = wait
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) {
		t.now = now
	}
}

// New creates a Throttle on top of st.
func New(st store.Store, log *slog.Logger, opts ...Option) *Throttle {
	t := &Throttle{
		store:   st,
		log:     log,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// LockKey returns the store key of the provider lock.
func LockKey(provider string) string {
	return keyPrefix + provider
}

// TimestampKey returns the store key holding the last allowed call, in unix milliseconds.
func TimestampKey(provider string) string {
	return keyPrefix + provider + ":time"
}

// Allow reports whether a call to provider is permitted now given minDelay. A permitted
// call records the current time, so of two calls closer than minDelay only the first
// is allowed. A lock that cannot be obtained within the configured wait denies the call.
func (t *Throttle) Allow(ctx context.Context, provider string, minDelay time.Duration) (bool, error) {
	if minDelay <= 0 {
		return true, nil
	}

	lock, err := t.acquire(ctx, LockKey(provider))
	if errors.Is(err, store.ErrLockHeld) {
		t.log.DebugContext(ctx, "Throttle lock is busy", "provider", provider)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire throttle lock: %w", err)
	}
	defer func() {
		if errRelease := lock.Release(context.WithoutCancel(ctx)); errRelease != nil {
			t.log.WarnContext(ctx, "Failed to release throttle lock", "provider", provider, "error", errRelease)
		}
	}()

	now := t.now()
	key := TimestampKey(provider)

	raw, err := t.store.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("failed to read throttle timestamp: %w", err)
	default:
		last, errParse := strconv.ParseInt(string(raw), 10, 64)
		if errParse == nil && now.Sub(time.UnixMilli(last)) < minDelay {
			return false, nil
		}
	}

	ttl := max(minTimestampTTL, minDelay)
	if err = t.store.Set(ctx, key, []byte(strconv.FormatInt(now.UnixMilli(), 10)), ttl); err != nil {
		return false, fmt.Errorf("failed to write throttle timestamp: %w", err)
	}

	return true, nil
}

// acquire tries the lock once, then every 25ms until the lock wait elapses.
func (t *Throttle) acquire(ctx context.Context, key string) (store.Lock, error) {
	deadline := time.Now().Add(t.lockWait)

	for {
		lock, err := t.store.TryLock(ctx, key, t.lockTTL)
		if !errors.Is(err, store.ErrLockHeld) {
			return lock, err
		}
		if !time.Now().Add(lockRetryInterval).Before(deadline) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
