package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultCleanupInterval = 5 * time.Minute

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store. It is suitable for a single gateway instance;
// locks and timestamps are not shared between processes.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]memoryEntry
	locks   map[string]memoryEntry // value holds the owner token
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store and starts its cleanup goroutine, which drops expired
// entries every interval. A non-positive interval uses five minutes. Close stops it.
func NewMemoryStore(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}

	m := &MemoryStore{
		items:  make(map[string]memoryEntry),
		locks:  make(map[string]memoryEntry),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go m.cleanup(interval)

	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.items[key]
	if !ok || entry.expired(m.now()) {
		return nil, ErrNotFound
	}

	return slices.Clone(entry.value), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryEntry{value: slices.Clone(value), expiresAt: m.deadline(ttl)}

	return nil
}

func (m *MemoryStore) TryLock(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, ok := m.locks[key]; ok && !held.expired(m.now()) {
		return nil, ErrLockHeld
	}

	token := uuid.NewString()
	m.locks[key] = memoryEntry{value: []byte(token), expiresAt: m.deadline(ttl)}

	return &memoryLock{store: m, key: key, token: token}, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (m *MemoryStore) Close() error {
	m.stopped.Do(func() { close(m.stopCh) })
	return nil
}

// Len returns the number of stored values, expired ones included until cleanup runs.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}

func (m *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}

	return m.now().Add(ttl)
}

func (m *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.purgeExpired()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryStore) purgeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.items {
		if entry.expired(now) {
			delete(m.items, key)
		}
	}
	for key, entry := range m.locks {
		if entry.expired(now) {
			delete(m.locks, key)
		}
	}
}

type memoryLock struct {
	store *MemoryStore
	key   string
	token string
}

func (l *memoryLock) Release(context.Context) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	if held, ok := l.store.locks[l.key]; ok && string(held.value) == l.token {
		delete(l.store.locks, l.key)
	}

	return nil
}
