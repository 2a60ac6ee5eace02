// Package cache stores raw provider payloads keyed by a fingerprint of the query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/geogate/internal/metrics"
	"github.com/UnknownOlympus/geogate/internal/store"
)

// Key prefixes for forward and reverse lookups.
const (
	SearchPrefix  = "address-search:"
	ReversePrefix = "address-reverse:"
)

// DefaultTTL keeps provider payloads for one year.
const DefaultTTL = 365 * 24 * time.Hour

const writeTimeout = 5 * time.Second

// KeyParams identifies a lookup. Field exclusions are not part of it; they are
// applied when a payload is read.
type KeyParams struct {
	Provider  string
	Query     string
	Lat       string
	Lon       string
	Countries []string
	Language  string
}

type canonicalKey struct {
	Provider  string   `json:"provider"`
	Query     string   `json:"query,omitempty"`
	Lat       string   `json:"lat,omitempty"`
	Lon       string   `json:"lon,omitempty"`
	Countries []string `json:"countries"`
	Language  string   `json:"language"`
}

// Key returns prefix followed by the hex sha256 of the canonical form of params.
// The query is trimmed with inner whitespace collapsed, countries are upper-cased,
// deduplicated and sorted, the language is lower-cased.
func Key(prefix string, params KeyParams) string {
	countries := make([]string, 0, len(params.Countries))
	for _, code := range params.Countries {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			countries = append(countries, code)
		}
	}
	slices.Sort(countries)
	countries = slices.Compact(countries)

	canonical := canonicalKey{
		Provider:  params.Provider,
		Query:     strings.Join(strings.Fields(params.Query), " "),
		Lat:       params.Lat,
		Lon:       params.Lon,
		Countries: countries,
		Language:  strings.ToLower(strings.TrimSpace(params.Language)),
	}

	// a struct of strings and a string slice always marshals
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)

	return prefix + hex.EncodeToString(sum[:])
}

// ResponseCache reads payloads synchronously and writes them in the background.
type ResponseCache struct {
	store   store.Store
	log     *slog.Logger
	metrics *metrics.Metrics
	ttl     time.Duration
	enabled bool
	wg      sync.WaitGroup
}

// New creates a cache over st. When enabled is false every Get misses and
// PutAsync does nothing. A non-positive ttl uses DefaultTTL.
func New(st store.Store, log *slog.Logger, m *metrics.Metrics, ttl time.Duration, enabled bool) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &ResponseCache{
		store:   st,
		log:     log,
		metrics: m,
		ttl:     ttl,
		enabled: enabled,
	}
}

// Enabled reports whether the cache is active.
func (c *ResponseCache) Enabled() bool {
	return c.enabled
}

// Get returns the payload stored under key. Store failures are logged and treated as a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.WarnContext(ctx, "Cache read failed, treating as miss", "key", key, "error", err)
		}
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	c.metrics.CacheLookups.WithLabelValues("hit").Inc()

	return raw, true
}

// PutAsync stores raw under key in a background goroutine. Failures are logged and
// counted, never retried.
func (c *ResponseCache) PutAsync(key string, raw []byte) {
	if !c.enabled {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			c.metrics.CacheWriteErrors.Inc()
			c.log.ErrorContext(ctx, "Failed to write provider response to cache", "key", key, "error", err)
			return
		}
		c.log.DebugContext(ctx, "Provider response cached", "key", key, "bytes", len(raw))
	}()
}

// Wait blocks until every pending write has finished.
func (c *ResponseCache) Wait() {
	c.wg.Wait()
}
