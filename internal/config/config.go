package config

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/geogate/internal/geocoding"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported cache stores.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds the configuration settings for the geocoding gateway.
//
// Fields:
// - Env: The current environment (local, development, production).
// - Port: The port of the public API server.
// - HealthPort: The port of the monitoring server (/healthz, /metrics).
// - Debug: Whether internal error details are exposed in 500 responses.
// - DefaultProvider: The provider preselected for clients.
// - UserAgent: The User-Agent sent to provider APIs.
// - HTTPTimeout: The timeout of a single outbound provider call.
// - Cache: Response cache settings.
// - Throttle: Per-provider lock settings.
// - RateLimit, RateBurst: Per-client-IP request rate of the public API, 0 disables it.
// - CORSOrigins: Origins allowed to call the API from a browser.
// - Providers: Provider configuration by name.
type Config struct {
	Env             string
	Port            int
	HealthPort      int
	Debug           bool
	DefaultProvider string
	UserAgent       string
	HTTPTimeout     time.Duration
	Cache           CacheConfig
	Throttle        ThrottleConfig
	RateLimit       float64
	RateBurst       int
	CORSOrigins     []string
	ProvidersFile   string
	Providers       map[string]geocoding.ProviderConfig
}

// CacheConfig selects and tunes the store behind the response cache and the throttle.
type CacheConfig struct {
	Enabled     bool          // Enabled turns response caching on or off; the throttle always uses the store
	Store       string        // Store is one of memory, redis, postgres
	TTL         time.Duration // TTL of a cached provider payload
	RedisURL    string        // RedisURL is used when Store is redis
	PostgresDSN string        // PostgresDSN is used when Store is postgres
}

// ThrottleConfig holds the per-provider lock settings.
type ThrottleConfig struct {
	LockTTL  time.Duration // LockTTL is the lease length of a provider lock
	LockWait time.Duration // LockWait is how long a request waits for a busy lock
}

// MustLoad loads the configuration from the environment (and an optional .env file)
// and the optional providers file. It panics on unparsable values.
func MustLoad() *Config {
	_ = godotenv.Load()

	port := mustInt("GEOGATE_PORT", "8080", "failed to parse port for api server from configuration")
	healthPort := mustInt("GEOGATE_HEALTH_PORT", "9090",
		"failed to parse port for monitoring server from configuration")
	burst := mustInt("GEOGATE_RATE_BURST", "20", "failed to parse rate burst from configuration, must be an integer")

	debug, err := strconv.ParseBool(setDefaultEnv("GEOGATE_DEBUG", "false"))
	if err != nil {
		panic("failed to parse debug flag from configuration")
	}

	cacheEnabled, err := strconv.ParseBool(setDefaultEnv("GEOGATE_CACHE_ENABLED", "true"))
	if err != nil {
		panic("failed to parse cache flag from configuration")
	}

	rateLimit, err := strconv.ParseFloat(setDefaultEnv("GEOGATE_RATE_LIMIT", "10"), 64)
	if err != nil {
		panic("failed to parse rate limit from configuration")
	}

	storeKind := setDefaultEnv("GEOGATE_CACHE_STORE", StoreMemory)
	switch storeKind {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		panic("unsupported cache store, use memory, redis or postgres")
	}

	cfg := &Config{
		Env:             setDefaultEnv("GEOGATE_ENV", "production"),
		Port:            port,
		HealthPort:      healthPort,
		Debug:           debug,
		DefaultProvider: setDefaultEnv("GEOGATE_DEFAULT_PROVIDER", geocoding.ProviderNominatim),
		UserAgent:       setDefaultEnv("GEOGATE_USER_AGENT", "Geogate/1.0 (https://github.com/UnknownOlympus/geogate)"),
		HTTPTimeout:     mustDuration("GEOGATE_HTTP_TIMEOUT", "10s", "failed to parse http timeout from configuration"),
		Cache: CacheConfig{
			Enabled:     cacheEnabled,
			Store:       storeKind,
			TTL:         mustDuration("GEOGATE_CACHE_TTL", "8760h", "failed to parse cache ttl from configuration"),
			RedisURL:    setDefaultEnv("GEOGATE_REDIS_URL", "redis://localhost:6379/0"),
			PostgresDSN: os.Getenv("GEOGATE_POSTGRES_DSN"),
		},
		Throttle: ThrottleConfig{
			LockTTL:  mustDuration("GEOGATE_THROTTLE_LOCK_TTL", "5s", "failed to parse throttle lock ttl from configuration"),
			LockWait: mustDuration("GEOGATE_THROTTLE_LOCK_WAIT", "0s", "failed to parse throttle lock wait from configuration"),
		},
		RateLimit:     rateLimit,
		RateBurst:     burst,
		CORSOrigins:   splitList(os.Getenv("GEOGATE_CORS_ORIGINS")),
		ProvidersFile: os.Getenv("GEOGATE_PROVIDERS_FILE"),
		Providers:     EnvProviders(),
	}

	if cfg.ProvidersFile != "" {
		providers, defaultProvider, errLoad := LoadProvidersFile(cfg.ProvidersFile, cfg.Providers)
		if errLoad != nil {
			panic("failed to load providers file: " + errLoad.Error())
		}
		cfg.Providers = providers
		if defaultProvider != "" {
			cfg.DefaultProvider = defaultProvider
		}
	}

	return cfg
}

// EnvProviders returns the built-in providers configured from their environment variables.
func EnvProviders() map[string]geocoding.ProviderConfig {
	return map[string]geocoding.ProviderConfig{
		geocoding.ProviderNominatim: {
			BaseURL:        os.Getenv("NOMINATIM_BASE_URL"),
			ReverseBaseURL: os.Getenv("NOMINATIM_REVERSE_BASE_URL"),
		},
		geocoding.ProviderGeoapify: {
			APIKey:         os.Getenv("GEOAPIFY_API_KEY"),
			APIKeyEnv:      "GEOAPIFY_API_KEY",
			BaseURL:        os.Getenv("GEOAPIFY_BASE_URL"),
			ReverseBaseURL: os.Getenv("GEOAPIFY_REVERSE_BASE_URL"),
		},
		geocoding.ProviderGeocodify: {
			APIKey:         os.Getenv("GEOCODIFY_API_KEY"),
			APIKeyEnv:      "GEOCODIFY_API_KEY",
			BaseURL:        os.Getenv("GEOCODIFY_BASE_URL"),
			ReverseBaseURL: os.Getenv("GEOCODIFY_REVERSE_BASE_URL"),
		},
		geocoding.ProviderGoogle: {
			APIKey:    os.Getenv("GOOGLE_GEOCODE_API_KEY"),
			APIKeyEnv: "GOOGLE_GEOCODE_API_KEY",
			BaseURL:   os.Getenv("GOOGLE_GEOCODE_BASE_URL"),
		},
		geocoding.ProviderMapbox: {
			APIKey:    os.Getenv("MAPBOX_ACCESS_TOKEN"),
			APIKeyEnv: "MAPBOX_ACCESS_TOKEN",
			BaseURL:   os.Getenv("MAPBOX_BASE_URL"),
		},
	}
}

// fileProvider is one entry under providers in the providers file.
type fileProvider struct {
	Adapter               string            `mapstructure:"adapter"`
	BaseURL               string            `mapstructure:"base_url"`
	ReverseBaseURL        string            `mapstructure:"reverse_base_url"`
	APIKey                string            `mapstructure:"api_key"`
	APIKeyParam           string            `mapstructure:"api_key_param_name"`
	MinDebounceDelay      *int64            `mapstructure:"min_debounce_delay"` // milliseconds
	ExcludeFields         []string          `mapstructure:"exclude_fields"`
	FreeformSearchKey     string            `mapstructure:"freeform_search_key"`
	RequestOptions        map[string]string `mapstructure:"request_options"`
	ReverseRequestOptions map[string]string `mapstructure:"reverse_request_options"`
}

type providersFile struct {
	DefaultProvider string                  `mapstructure:"default_provider"`
	Providers       map[string]fileProvider `mapstructure:"providers"`
}

// LoadProvidersFile reads a YAML, JSON or TOML providers file and merges its entries
// over base. String values may reference environment variables as ${VAR}.
// It returns the merged providers and the file's default provider, if any.
func LoadProvidersFile(path string, base map[string]geocoding.ProviderConfig) (
	map[string]geocoding.ProviderConfig, string, error,
) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file providersFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, "", fmt.Errorf("failed to decode %s: %w", path, err)
	}

	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]geocoding.ProviderConfig, len(file.Providers))
	}
	for name, entry := range file.Providers {
		if entry.MinDebounceDelay != nil && *entry.MinDebounceDelay < 0 {
			return nil, "", fmt.Errorf("provider %s: min_debounce_delay must not be negative", name)
		}
		merged[name] = mergeProvider(merged[name], entry)
	}

	return merged, os.ExpandEnv(file.DefaultProvider), nil
}

// mergeProvider overlays the non-empty values of entry on cfg.
func mergeProvider(cfg geocoding.ProviderConfig, entry fileProvider) geocoding.ProviderConfig {
	override := func(dst *string, value string) {
		if value = os.ExpandEnv(value); value != "" {
			*dst = value
		}
	}

	override(&cfg.Adapter, entry.Adapter)
	override(&cfg.BaseURL, entry.BaseURL)
	override(&cfg.ReverseBaseURL, entry.ReverseBaseURL)
	override(&cfg.APIKey, entry.APIKey)
	override(&cfg.APIKeyParam, entry.APIKeyParam)
	override(&cfg.FreeformSearchKey, entry.FreeformSearchKey)

	if entry.MinDebounceDelay != nil {
		delay := time.Duration(*entry.MinDebounceDelay) * time.Millisecond
		cfg.MinDebounceDelay = &delay
	}
	for _, field := range entry.ExcludeFields {
		cfg.ExcludeFields = append(cfg.ExcludeFields, os.ExpandEnv(field))
	}
	if len(entry.RequestOptions) > 0 {
		cfg.RequestOptions = expandMap(cfg.RequestOptions, entry.RequestOptions)
	}
	if len(entry.ReverseRequestOptions) > 0 {
		cfg.ReverseRequestOptions = expandMap(cfg.ReverseRequestOptions, entry.ReverseRequestOptions)
	}

	return cfg
}

func expandMap(base, overrides map[string]string) map[string]string {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]string, len(overrides))
	}
	for key, value := range overrides {
		out[key] = os.ExpandEnv(value)
	}

	return out
}

func mustInt(key, fallback, msg string) int {
	value, err := strconv.Atoi(setDefaultEnv(key, fallback))
	if err != nil {
		panic(msg)
	}

	return value
}

func mustDuration(key, fallback, msg string) time.Duration {
	value, err := time.ParseDuration(setDefaultEnv(key, fallback))
	if err != nil {
		panic(msg)
	}

	return value
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

func setDefaultEnv(key, override string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = override
	}

	return value
}
