package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/UnknownOlympus/geogate/internal/apperr"
	"github.com/UnknownOlympus/geogate/internal/cache"
	"github.com/UnknownOlympus/geogate/internal/geocoding"
	"github.com/UnknownOlympus/geogate/internal/metrics"
	"github.com/UnknownOlympus/geogate/internal/models"
)

// maxBodySize caps the provider payload read into memory.
const maxBodySize = 10 << 20

// CacheStatus tells how a lookup was answered.
type CacheStatus string

const (
	StatusHit       CacheStatus = "HIT"
	StatusMiss      CacheStatus = "MISS"
	StatusThrottled CacheStatus = "THROTTLED"
)

// Throttler limits how often a provider is called.
type Throttler interface {
	Allow(ctx context.Context, provider string, minDelay time.Duration) (bool, error)
}

// ResponseCache stores raw provider payloads.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	PutAsync(key string, raw []byte)
}

// SearchQuery is a forward geocoding lookup.
type SearchQuery struct {
	Provider          string
	Query             string
	Countries         []string
	Language          string
	AdditionalExclude []string
}

// ReverseQuery is a reverse geocoding lookup.
type ReverseQuery struct {
	Provider          string
	Lat               float64
	Lon               float64
	Language          string
	AdditionalExclude []string
}

// Result is the outcome of a lookup. A MISS result carries the raw payload until
// Persist hands it to the cache.
type Result struct {
	Response models.SearchResponse
	Status   CacheStatus

	cacheKey string
	raw      []byte
}

// Settings is the static configuration of the gateway.
type Settings struct {
	Providers       map[string]geocoding.ProviderConfig // Configured providers by name
	DefaultProvider string
	UserAgent       string
}

// Gateway resolves providers, consults the cache and the throttle, calls the
// provider API and normalizes its answer.
type Gateway struct {
	log      *slog.Logger              // Logger for lookup activity
	registry *geocoding.Registry       // Adapter factories by name
	client   geocoding.HTTPClient      // Client for outbound provider calls
	cache    ResponseCache             // Raw payload cache
	throttle Throttler                 // Per-provider minimum delay
	metrics  *metrics.Metrics          // Metrics for lookups and provider calls
	settings Settings                  // Provider configuration and request identity
	names    []string                  // Registered and configured provider names
}

// NewGateway creates a Gateway. The provider configuration is copied and never
// changes afterwards.
func NewGateway(
	log *slog.Logger,
	registry *geocoding.Registry,
	client geocoding.HTTPClient,
	responses ResponseCache,
	limiter Throttler,
	m *metrics.Metrics,
	settings Settings,
) *Gateway {
	providers := make(map[string]geocoding.ProviderConfig, len(settings.Providers))
	names := registry.Names()
	for name, cfg := range settings.Providers {
		providers[name] = cfg
		names = append(names, name)
	}
	slices.Sort(names)
	settings.Providers = providers

	return &Gateway{
		log:      log,
		registry: registry,
		client:   client,
		cache:    responses,
		throttle: limiter,
		metrics:  m,
		settings: settings,
		names:    slices.Compact(names),
	}
}

// Providers returns every provider name a request may use, sorted.
func (g *Gateway) Providers() []string {
	return slices.Clone(g.names)
}

// DefaultProvider returns the provider preselected for clients.
func (g *Gateway) DefaultProvider() string {
	return g.settings.DefaultProvider
}

// HasProvider reports whether name can be resolved.
func (g *Gateway) HasProvider(name string) bool {
	_, found := slices.BinarySearch(g.names, name)
	return found
}

// Search runs a forward lookup.
func (g *Gateway) Search(ctx context.Context, q SearchQuery) (*Result, error) {
	adapter, err := g.resolve(q.Provider)
	if err != nil {
		return nil, err
	}

	opts := geocoding.SearchOptions{Countries: q.Countries, Language: q.Language}

	return g.lookup(ctx, adapter, lookup{
		kind: "search",
		key: cache.Key(cache.SearchPrefix, cache.KeyParams{
			Provider:  q.Provider,
			Query:     q.Query,
			Countries: q.Countries,
			Language:  q.Language,
		}),
		exclude:   q.AdditionalExclude,
		request:   adapter.BuildSearchRequest(q.Query, opts),
		transform: adapter.TransformResponse,
		attrs:     []any{"query", q.Query},
	})
}

// Reverse runs a reverse lookup.
func (g *Gateway) Reverse(ctx context.Context, q ReverseQuery) (*Result, error) {
	adapter, err := g.resolve(q.Provider)
	if err != nil {
		return nil, err
	}

	point := models.Coordinates{Latitude: q.Lat, Longitude: q.Lon}
	opts := geocoding.ReverseOptions{Language: q.Language}

	return g.lookup(ctx, adapter, lookup{
		kind: "reverse",
		key: cache.Key(cache.ReversePrefix, cache.KeyParams{
			Provider: q.Provider,
			Lat:      strconv.FormatFloat(q.Lat, 'f', -1, 64),
			Lon:      strconv.FormatFloat(q.Lon, 'f', -1, 64),
			Language: q.Language,
		}),
		exclude:   q.AdditionalExclude,
		request:   adapter.BuildReverseRequest(q.Lat, q.Lon, opts),
		transform: adapter.TransformReverseResponse,
		attrs:     []any{"coordinates", point.String()},
	})
}

// Persist schedules the cache write of a freshly fetched payload. It is called once the
// response has been sent; results served from cache or throttled are ignored.
func (g *Gateway) Persist(result *Result) {
	if result == nil || result.Status != StatusMiss || result.raw == nil {
		return
	}

	g.cache.PutAsync(result.cacheKey, result.raw)
	result.raw = nil
}

type lookup struct {
	kind      string
	key       string
	exclude   []string
	request   geocoding.Request
	transform func(raw []byte, exclude []string) (models.SearchResponse, error)
	attrs     []any
}

func (g *Gateway) lookup(ctx context.Context, adapter geocoding.Adapter, l lookup) (*Result, error) {
	provider := adapter.Name()

	if raw, ok := g.cache.Get(ctx, l.key); ok {
		resp, err := l.transform(raw, l.exclude)
		if err == nil {
			g.metrics.Requests.WithLabelValues(provider, l.kind, string(StatusHit)).Inc()
			g.log.DebugContext(ctx, "Served from cache", append([]any{"provider", provider}, l.attrs...)...)
			return &Result{Response: resp, Status: StatusHit}, nil
		}
		g.log.WarnContext(ctx, "Cached payload could not be transformed, refetching",
			"provider", provider, "key", l.key, "error", err)
	}

	allowed, err := g.throttle.Allow(ctx, provider, adapter.MinDebounceDelay())
	if err != nil {
		return nil, apperr.Internal(err).WithOp("gateway." + l.kind)
	}
	if !allowed {
		g.metrics.Throttled.WithLabelValues(provider).Inc()
		g.metrics.Requests.WithLabelValues(provider, l.kind, string(StatusThrottled)).Inc()
		g.log.InfoContext(ctx, "Provider throttled", append([]any{"provider", provider}, l.attrs...)...)
		return &Result{Response: models.SearchResponse{Results: []models.AddressResult{}}, Status: StatusThrottled}, nil
	}

	raw, status, err := g.fetch(ctx, provider, l)
	if err != nil {
		g.metrics.APIErrors.WithLabelValues(provider).Inc()
		return nil, upstreamError(err)
	}

	resp, err := l.transform(raw, l.exclude)
	if err != nil {
		g.metrics.APIErrors.WithLabelValues(provider).Inc()
		g.log.WarnContext(ctx, "Provider payload could not be transformed",
			append([]any{"provider", provider, "url", l.request.URL, "error", err}, l.attrs...)...)
		return nil, upstreamError(&geocoding.ProviderAPIError{Provider: provider, StatusCode: status, Err: err})
	}

	g.metrics.Requests.WithLabelValues(provider, l.kind, string(StatusMiss)).Inc()

	return &Result{Response: resp, Status: StatusMiss, cacheKey: l.key, raw: raw}, nil
}

// fetch performs the outbound GET and returns the body of a 2xx answer.
func (g *Gateway) fetch(ctx context.Context, provider string, l lookup) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.request.String(), nil)
	if err != nil {
		return nil, 0, &geocoding.ProviderAPIError{Provider: provider, Err: err}
	}
	req.Header.Set("User-Agent", g.settings.UserAgent)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := g.client.Do(req)
	g.metrics.RequestSeconds.WithLabelValues(provider).Observe(time.Since(startTime).Seconds())
	if err != nil {
		g.log.WarnContext(ctx, "Provider request failed",
			append([]any{"provider", provider, "url", l.request.URL, "error", err}, l.attrs...)...)
		return nil, 0, &geocoding.ProviderAPIError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, &geocoding.ProviderAPIError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		g.log.WarnContext(ctx, "Provider API returned an error status",
			append([]any{
				"provider", provider,
				"status", resp.StatusCode,
				"url", l.request.URL,
				"body", string(body),
			}, l.attrs...)...)
		return nil, resp.StatusCode, &geocoding.ProviderAPIError{Provider: provider, StatusCode: resp.StatusCode}
	}

	return body, resp.StatusCode, nil
}

// resolve returns the adapter for name, or a bad-request error when it is unknown,
// misconfigured or lacks a required API key.
func (g *Gateway) resolve(name string) (geocoding.Adapter, error) {
	cfg, configured := g.settings.Providers[name]
	if !configured && !g.registry.Has(name) {
		return nil, apperr.BadRequest(&geocoding.UnknownProviderError{Name: name, Available: g.Providers()})
	}

	adapter, err := g.registry.Make(name, cfg)
	if err != nil {
		return nil, apperr.BadRequest(err)
	}

	if adapter.RequiresAPIKey() && adapter.APIKey() == "" {
		return nil, apperr.BadRequest(&geocoding.MissingAPIKeyError{Provider: name, EnvVar: cfg.APIKeyEnv})
	}

	return adapter, nil
}

// upstreamError maps a provider failure to a 502 carrying the upstream status, or 502
// itself when no response was received.
func upstreamError(err error) error {
	status := http.StatusBadGateway

	var apiErr *geocoding.ProviderAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		status = apiErr.StatusCode
	}

	return apperr.Upstream(err, status)
}
