// Package server exposes the geocoding gateway over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/UnknownOlympus/geogate/internal/metrics"
	"github.com/UnknownOlympus/geogate/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CacheHeader reports whether a result came from the cache.
const CacheHeader = "X-Cache"

// Gateway is the lookup surface the handlers depend on.
type Gateway interface {
	Search(ctx context.Context, q service.SearchQuery) (*service.Result, error)
	Reverse(ctx context.Context, q service.ReverseQuery) (*service.Result, error)
	Persist(result *service.Result)
	Providers() []string
	DefaultProvider() string
	HasProvider(name string) bool
}

// Options tunes the HTTP surface.
type Options struct {
	Debug       bool     // Debug exposes internal error text in 500 responses
	RateLimit   float64  // RateLimit is requests per second per client IP, 0 disables it
	RateBurst   int      // RateBurst is the per-IP burst size
	CORSOrigins []string // CORSOrigins lists allowed browser origins, "*" allows any
}

// New builds the gin engine serving POST /search, POST /reverse and GET /providers.
func New(log *slog.Logger, gateway Gateway, m *metrics.Metrics, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(log), Instrument(m))

	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(opts.CORSOrigins)))
	}
	if opts.RateLimit > 0 {
		limiter := NewIPRateLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1), log)
		router.Use(limiter.RateLimit())
	}

	h := NewHandler(log, gateway, opts.Debug)
	router.POST("/search", h.Search)
	router.POST("/reverse", h.Reverse)
	router.GET("/providers", h.Providers)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{CacheHeader, RequestIDHeader},
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}

	return cfg
}
