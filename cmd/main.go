package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/geogate/internal/cache"
	"github.com/UnknownOlympus/geogate/internal/config"
	"github.com/UnknownOlympus/geogate/internal/geocoding"
	"github.com/UnknownOlympus/geogate/internal/metrics"
	"github.com/UnknownOlympus/geogate/internal/server"
	"github.com/UnknownOlympus/geogate/internal/service"
	"github.com/UnknownOlympus/geogate/internal/store"
	"github.com/UnknownOlympus/geogate/internal/throttle"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

const (
	memoryCleanupInterval = time.Minute
	postgresPurgeInterval = time.Hour
	shutdownTimeout       = 10 * time.Second
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)
	if cfg.Env != envLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Open the store shared by the response cache and the throttle.
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Cache.Store, err)
	}
	defer st.Close()

	responses := cache.New(st, logger, appMetrics, cfg.Cache.TTL, cfg.Cache.Enabled)
	limiter := throttle.New(st, logger,
		throttle.WithLockTTL(cfg.Throttle.LockTTL),
		throttle.WithLockWait(cfg.Throttle.LockWait),
	)

	gateway := service.NewGateway(
		logger,
		geocoding.NewDefaultRegistry(),
		&http.Client{Timeout: cfg.HTTPTimeout},
		responses,
		limiter,
		appMetrics,
		service.Settings{
			Providers:       cfg.Providers,
			DefaultProvider: cfg.DefaultProvider,
			UserAgent:       cfg.UserAgent,
		},
	)

	logger.InfoContext(ctx, "Geocoding gateway initialized",
		"providers", gateway.Providers(),
		"default", gateway.DefaultProvider(),
		"store", cfg.Cache.Store,
		"cache_enabled", responses.Enabled(),
	)

	router := server.New(logger, gateway, appMetrics, server.Options{
		Debug:       cfg.Debug,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		CORSOrigins: cfg.CORSOrigins,
	})

	readTimeout := 5
	writeTimeout := 10
	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: cfg.HTTPTimeout + time.Duration(writeTimeout)*time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runServer(groupCtx, logger, "api", apiServer)
	})
	group.Go(func() error {
		return runServer(groupCtx, logger, "monitoring", newMonitoringServer(ctx, logger, reg, st, cfg.HealthPort))
	})
	if pg, ok := st.(*store.PostgresStore); ok {
		group.Go(func() error {
			pg.Run(groupCtx, postgresPurgeInterval)
			return nil
		})
	}

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	if err = group.Wait(); err != nil {
		logger.ErrorContext(ctx, "Server stopped with error", "error", err)
	}

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Waiting for pending cache writes...")
	responses.Wait()

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// openStore connects the configured store. The Postgres schema is created when missing.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Cache.Store {
	case config.StoreRedis:
		return store.NewRedisStore(ctx, cfg.Cache.RedisURL)
	case config.StorePostgres:
		dtb, err := store.NewDatabase(ctx, cfg.Cache.PostgresDSN)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(dtb, log)
		if err = pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return store.NewMemoryStore(memoryCleanupInterval), nil
	}
}

// runServer serves srv until ctx is canceled, then shuts it down gracefully.
func runServer(ctx context.Context, log *slog.Logger, name string, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "Starting server", "name", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	log.InfoContext(shutdownCtx, "Stopping server", "name", name)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s server shutdown: %w", name, err)
	}

	return nil
}

// newMonitoringServer builds an HTTP server that provides health check and metrics endpoints.
//
// Parameters:
// - ctx: A context.Context for logging.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - st: The store shared by the cache and the throttle (ping).
// - port: The port number on which the server will listen.
func newMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	st store.Store,
	port int,
) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, req *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		status, body := http.StatusOK, "OK"
		if err := st.Ping(req.Context()); err != nil {
			status, body = http.StatusServiceUnavailable, "Store ping failed"
		}
		writer.WriteHeader(status)
		_, err := writer.Write([]byte(body))
		if err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}

		log.DebugContext(ctx, "Health checks completed", "status", status)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	readTimeout := 5
	writeTimeout := 10

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				AddSource:   false,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelError,
				AddSource:   false,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
