package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/geogate/internal/config"
	"github.com/UnknownOlympus/geogate/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MustLoadFromEnv(t *testing.T) {
	t.Setenv("GEOGATE_ENV", "local")
	t.Setenv("GEOGATE_PORT", "8181")
	t.Setenv("GEOGATE_CACHE_STORE", "redis")
	t.Setenv("GEOGATE_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("GEOGATE_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("GEOGATE_PROVIDERS_FILE", "")
	t.Setenv("GOOGLE_GEOCODE_API_KEY", "google-key")
	t.Setenv("NOMINATIM_BASE_URL", "http://nominatim.local/search")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 8181, cfg.Port)
	assert.Equal(t, 9090, cfg.HealthPort)
	assert.False(t, cfg.Debug)
	assert.Equal(t, geocoding.ProviderNominatim, cfg.DefaultProvider)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, config.StoreRedis, cfg.Cache.Store)
	assert.Equal(t, "redis://cache:6379/2", cfg.Cache.RedisURL)
	assert.Equal(t, 365*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 5*time.Second, cfg.Throttle.LockTTL)
	assert.Zero(t, cfg.Throttle.LockWait)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	google := cfg.Providers[geocoding.ProviderGoogle]
	assert.Equal(t, "google-key", google.APIKey)
	assert.Equal(t, "GOOGLE_GEOCODE_API_KEY", google.APIKeyEnv)
	assert.Equal(t, "http://nominatim.local/search", cfg.Providers[geocoding.ProviderNominatim].BaseURL)
}

func TestMustLoad_PortError(t *testing.T) {
	t.Setenv("GEOGATE_HEALTH_PORT", "error_value")

	assert.PanicsWithValue(t, "failed to parse port for monitoring server from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_BurstError(t *testing.T) {
	t.Setenv("GEOGATE_RATE_BURST", "error_value")

	assert.PanicsWithValue(t, "failed to parse rate burst from configuration, must be an integer", func() {
		config.MustLoad()
	})
}

func TestMustLoad_TTLError(t *testing.T) {
	t.Setenv("GEOGATE_CACHE_TTL", "forever")

	assert.PanicsWithValue(t, "failed to parse cache ttl from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_StoreError(t *testing.T) {
	t.Setenv("GEOGATE_CACHE_STORE", "memcached")

	assert.PanicsWithValue(t, "unsupported cache store, use memory, redis or postgres", func() {
		config.MustLoad()
	})
}

const providersYAML = `
default_provider: osm-internal
providers:
  osm-internal:
    adapter: nominatim
    base_url: https://osm.internal/search
    min_debounce_delay: 0
    exclude_fields: [osm_id]
    request_options:
      dedupe: 0
  google:
    api_key: ${TEST_GOOGLE_KEY}
    min_debounce_delay: 250
`

func TestLoadProvidersFile(t *testing.T) {
	defer filet.CleanUp(t)

	t.Setenv("TEST_GOOGLE_KEY", "from-file")
	dir := filet.TmpDir(t, "")
	path := filepath.Join(dir, "providers.yaml")
	filet.File(t, path, providersYAML)

	base := map[string]geocoding.ProviderConfig{
		geocoding.ProviderGoogle: {APIKeyEnv: "GOOGLE_GEOCODE_API_KEY", BaseURL: "https://maps.example/geocode"},
	}

	providers, defaultProvider, err := config.LoadProvidersFile(path, base)
	require.NoError(t, err)

	assert.Equal(t, "osm-internal", defaultProvider)

	internal := providers["osm-internal"]
	assert.Equal(t, geocoding.ProviderNominatim, internal.Adapter)
	assert.Equal(t, "https://osm.internal/search", internal.BaseURL)
	require.NotNil(t, internal.MinDebounceDelay)
	assert.Zero(t, *internal.MinDebounceDelay)
	assert.Equal(t, []string{"osm_id"}, internal.ExcludeFields)
	assert.Equal(t, map[string]string{"dedupe": "0"}, internal.RequestOptions)

	google := providers[geocoding.ProviderGoogle]
	assert.Equal(t, "from-file", google.APIKey)
	assert.Equal(t, "GOOGLE_GEOCODE_API_KEY", google.APIKeyEnv)
	assert.Equal(t, "https://maps.example/geocode", google.BaseURL)
	require.NotNil(t, google.MinDebounceDelay)
	assert.Equal(t, 250*time.Millisecond, *google.MinDebounceDelay)

	assert.Empty(t, base[geocoding.ProviderGoogle].APIKey, "base map must not be modified")
}

func TestLoadProvidersFile_Errors(t *testing.T) {
	defer filet.CleanUp(t)

	dir := filet.TmpDir(t, "")

	t.Run("missing file", func(t *testing.T) {
		_, _, err := config.LoadProvidersFile(filepath.Join(dir, "absent.yaml"), nil)
		require.Error(t, err)
	})

	t.Run("negative delay", func(t *testing.T) {
		path := filepath.Join(dir, "negative.yaml")
		filet.File(t, path, "providers:\n  nominatim:\n    min_debounce_delay: -5\n")

		_, _, err := config.LoadProvidersFile(path, nil)
		require.ErrorContains(t, err, "min_debounce_delay must not be negative")
	})
}

func TestMustLoad_ProvidersFile(t *testing.T) {
	defer filet.CleanUp(t)

	dir := filet.TmpDir(t, "")
	path := filepath.Join(dir, "providers.yaml")
	filet.File(t, path, "default_provider: mapbox\n")
	t.Setenv("GEOGATE_PROVIDERS_FILE", path)

	cfg := config.MustLoad()

	assert.Equal(t, geocoding.ProviderMapbox, cfg.DefaultProvider)
	assert.Contains(t, cfg.Providers, geocoding.ProviderGeoapify)
}
