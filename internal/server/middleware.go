package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/geogate/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// ContextRequestIDKey is the gin context key for the request id.
	ContextRequestIDKey = "requestID"
)

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

// RequestLogger logs HTTP requests with timing.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		log.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"request_id", c.GetString(ContextRequestIDKey),
		)
	}
}

// Instrument observes the duration of every request by route and status.
func Instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPDuration.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Observe(time.Since(start).Seconds())
	}
}

// limiterIdleTTL is how long a client's limiter survives without requests.
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// IPRateLimiter manages per-IP rate limiters. Limiters idle for longer than
// limiterIdleTTL are dropped by a sweep that runs at most once per idle period.
type IPRateLimiter struct {
	limiters  sync.Map // ip -> *visitor
	rate      rate.Limit
	burst     int
	log       *slog.Logger
	now       func() time.Time
	lastSweep atomic.Int64
}

// NewIPRateLimiter creates a new IP-based rate limiter.
func NewIPRateLimiter(r rate.Limit, burst int, log *slog.Logger) *IPRateLimiter {
	i := &IPRateLimiter{
		rate:  r,
		burst: burst,
		log:   log,
		now:   time.Now,
	}
	i.lastSweep.Store(i.now().UnixNano())

	return i
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	now := i.now().UnixNano()
	i.maybeSweep(now)

	entry, ok := i.limiters.Load(ip)
	if !ok {
		entry, _ = i.limiters.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(i.rate, i.burst)})
	}
	v := entry.(*visitor)
	v.lastSeen.Store(now)

	return v.limiter
}

func (i *IPRateLimiter) maybeSweep(now int64) {
	last := i.lastSweep.Load()
	if now-last < int64(limiterIdleTTL) || !i.lastSweep.CompareAndSwap(last, now) {
		return
	}

	i.sweep(now)
}

// sweep drops the limiters not used since limiterIdleTTL before now.
func (i *IPRateLimiter) sweep(now int64) {
	i.limiters.Range(func(key, value any) bool {
		if now-value.(*visitor).lastSeen.Load() > int64(limiterIdleTTL) {
			i.limiters.Delete(key)
		}
		return true
	})
}

// Len returns the number of tracked clients.
func (i *IPRateLimiter) Len() int {
	n := 0
	i.limiters.Range(func(any, any) bool {
		n++
		return true
	})

	return n
}

// RateLimit returns a middleware that rate limits by IP.
func (i *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !i.getLimiter(ip).Allow() {
			i.log.WarnContext(c.Request.Context(), "Rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}

		c.Next()
	}
}
