package geocoding_test

import (
	"errors"
	"testing"
	"time"

	"github.com/UnknownOlympus/geogate/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := geocoding.NewDefaultRegistry()

	t.Run("registers every built-in provider", func(t *testing.T) {
		assert.Equal(t, []string{"geoapify", "geocodify", "google", "mapbox", "nominatim"}, reg.Names())
		for _, name := range reg.Names() {
			assert.True(t, reg.Has(name), name)
		}
	})

	t.Run("makes the built-in adapters", func(t *testing.T) {
		tests := []struct {
			name     string
			expected any
		}{
			{geocoding.ProviderNominatim, &geocoding.NominatimAdapter{}},
			{geocoding.ProviderGeoapify, &geocoding.GeoapifyAdapter{}},
			{geocoding.ProviderGeocodify, &geocoding.GeocodifyAdapter{}},
			{geocoding.ProviderGoogle, &geocoding.GoogleAdapter{}},
			{geocoding.ProviderMapbox, &geocoding.MapboxAdapter{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				adapter, err := reg.Make(tt.name, geocoding.ProviderConfig{})
				require.NoError(t, err)
				assert.IsType(t, tt.expected, adapter)
				assert.Equal(t, tt.name, adapter.Name())
			})
		}
	})

	t.Run("unknown provider lists the available names", func(t *testing.T) {
		adapter, err := reg.Make("here", geocoding.ProviderConfig{})

		require.Error(t, err)
		assert.Nil(t, adapter)

		var unknown *geocoding.UnknownProviderError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "here", unknown.Name)
		assert.Equal(
			t,
			"provider 'here' not found. Available: geoapify, geocodify, google, mapbox, nominatim",
			err.Error(),
		)
	})

	t.Run("custom name bound to a built-in adapter kind", func(t *testing.T) {
		delay := 250 * time.Millisecond
		adapter, err := reg.Make("osm-internal", geocoding.ProviderConfig{
			Adapter:          geocoding.ProviderNominatim,
			BaseURL:          "https://nominatim.internal/search",
			MinDebounceDelay: &delay,
		})

		require.NoError(t, err)
		assert.IsType(t, &geocoding.NominatimAdapter{}, adapter)
		assert.Equal(t, "osm-internal", adapter.Name())
		assert.Equal(t, delay, adapter.MinDebounceDelay())
		assert.Equal(t, "https://nominatim.internal/search", adapter.BuildSearchRequest("x", geocoding.SearchOptions{}).URL)
	})

	t.Run("adapter reference to an unregistered kind", func(t *testing.T) {
		_, err := reg.Make("custom", geocoding.ProviderConfig{Adapter: "nope"})

		var invalid *geocoding.InvalidProviderError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "custom", invalid.Name)
		assert.Contains(t, err.Error(), "adapter 'nope' is not registered")
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("rejects an empty name", func(t *testing.T) {
		reg := geocoding.NewRegistry()
		err := reg.Register("", func(string, geocoding.ProviderConfig) (geocoding.Adapter, error) {
			return nil, nil
		})

		var invalid *geocoding.InvalidProviderError
		require.ErrorAs(t, err, &invalid)
		assert.Empty(t, reg.Names())
	})

	t.Run("rejects a nil factory", func(t *testing.T) {
		reg := geocoding.NewRegistry()
		err := reg.Register("custom", nil)

		var invalid *geocoding.InvalidProviderError
		require.ErrorAs(t, err, &invalid)
		assert.False(t, reg.Has("custom"))
	})

	t.Run("factory returning no adapter", func(t *testing.T) {
		reg := geocoding.NewRegistry()
		require.NoError(t, reg.Register("custom", func(string, geocoding.ProviderConfig) (geocoding.Adapter, error) {
			return nil, nil
		}))

		_, err := reg.Make("custom", geocoding.ProviderConfig{})

		var invalid *geocoding.InvalidProviderError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("factory error", func(t *testing.T) {
		reg := geocoding.NewRegistry()
		require.NoError(t, reg.Register("custom", func(string, geocoding.ProviderConfig) (geocoding.Adapter, error) {
			return nil, errors.New("boom")
		}))

		_, err := reg.Make("custom", geocoding.ProviderConfig{})

		var invalid *geocoding.InvalidProviderError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "boom", invalid.Reason)
	})

	t.Run("custom provider reusing an adapter", func(t *testing.T) {
		reg := geocoding.NewRegistry()
		require.NoError(t, reg.Register("self-hosted", func(name string, cfg geocoding.ProviderConfig) (geocoding.Adapter, error) {
			return geocoding.NewNominatimAdapter(name, cfg), nil
		}))

		adapter, err := reg.Make("self-hosted", geocoding.ProviderConfig{})

		require.NoError(t, err)
		assert.Equal(t, "self-hosted", adapter.Name())
		assert.Equal(t, []string{"self-hosted"}, reg.Names())
	})
}
