package geocoding_test

import (
	"testing"

	"github.com/UnknownOlympus/geogate/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mountainViewPayload = `{
	"status": "OK",
	"results": [{
		"address_components": [
			{"long_name": "1600", "short_name": "1600", "types": ["street_number"]},
			{"long_name": "Amphitheatre Parkway", "short_name": "Amphitheatre Pkwy", "types": ["route"]},
			{"long_name": "Mountain View", "short_name": "Mountain View", "types": ["locality", "political"]},
			{"long_name": "California", "short_name": "CA", "types": ["administrative_area_level_1", "political"]},
			{"long_name": "United States", "short_name": "US", "types": ["country", "political"]},
			{"long_name": "94043", "short_name": "94043", "types": ["postal_code"]}
		],
		"formatted_address": "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA",
		"geometry": {
			"location": {"lat": 37.4224764, "lng": -122.0842499},
			"location_type": "ROOFTOP"
		},
		"place_id": "ChIJ2eUgeAK6j4ARbn5u_wAGqWA",
		"plus_code": {"global_code": "849VCWC8+R9"},
		"types": ["street_address"]
	}]
}`

func TestGoogleAdapter_BuildSearchRequest(t *testing.T) {
	adapter := geocoding.NewGoogleAdapter(geocoding.ProviderGoogle, geocoding.ProviderConfig{APIKey: "test-key"})

	t.Run("countries become region and components", func(t *testing.T) {
		req := adapter.BuildSearchRequest("Amphitheatre Parkway", geocoding.SearchOptions{
			Countries: []string{"us", "CA"},
			Language:  "en",
		})

		assert.Equal(t, geocoding.GoogleBaseURL, req.URL)
		assert.Equal(t, "Amphitheatre Parkway", req.Params.Get("address"))
		assert.Equal(t, "us", req.Params.Get("region"))
		assert.Equal(t, "country:US|country:CA", req.Params.Get("components"))
		assert.Equal(t, "en", req.Params.Get("language"))
		assert.Equal(t, "test-key", req.Params.Get("key"))
	})

	t.Run("no filters", func(t *testing.T) {
		req := adapter.BuildSearchRequest("x", geocoding.SearchOptions{})

		assert.False(t, req.Params.Has("region"))
		assert.False(t, req.Params.Has("components"))
	})

	t.Run("reverse", func(t *testing.T) {
		req := adapter.BuildReverseRequest(37.4224764, -122.0842499, geocoding.ReverseOptions{})

		assert.Equal(t, geocoding.GoogleBaseURL, req.URL)
		assert.Equal(t, "37.4224764,-122.0842499", req.Params.Get("latlng"))
		assert.Equal(t, "test-key", req.Params.Get("key"))
	})

	t.Run("requires a key", func(t *testing.T) {
		assert.True(t, adapter.RequiresAPIKey())
		assert.Equal(t, "test-key", adapter.APIKey())
	})
}

func TestGoogleAdapter_TransformResponse(t *testing.T) {
	adapter := geocoding.NewGoogleAdapter(geocoding.ProviderGoogle, geocoding.ProviderConfig{})

	t.Run("mountain view", func(t *testing.T) {
		resp, err := adapter.TransformResponse([]byte(mountainViewPayload), nil)

		require.NoError(t, err)
		require.Equal(t, 1, resp.Len())

		out := resp.Results[0].ToMap()
		assert.Equal(t, "Mountain View", out["city"])
		assert.Equal(t, "California", out["region"])
		assert.Equal(t, "United States", out["country"])
		assert.Equal(t, "US", out["countryCode"])
		assert.Equal(t, "Mountain View", out["name"])
		assert.Equal(t, "Amphitheatre Parkway", out["street"])
		assert.Equal(t, "1600", out["houseNumber"])
		assert.Equal(t, "94043", out["postcode"])
		assert.Equal(t, "37.4224764", out["lat"])
		assert.Equal(t, "-122.0842499", out["lon"])
		assert.Equal(t, "ROOFTOP", out["type"])
		assert.Equal(t, "ChIJ2eUgeAK6j4ARbn5u_wAGqWA", out["id"])
		assert.Equal(t, "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA", out["label"])

		address, ok := out["address"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"long_name": "California", "short_name": "CA"}, address["administrative_area_level_1"])

		additional, ok := out["additional"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, additional, "plus_code")
		assert.Contains(t, additional, "types")
		assert.NotContains(t, additional, "geometry")
		assert.NotContains(t, additional, "address_components")
	})

	t.Run("zero results", func(t *testing.T) {
		resp, err := adapter.TransformResponse([]byte(`{"status":"ZERO_RESULTS","results":[]}`), nil)

		require.NoError(t, err)
		assert.Equal(t, 0, resp.Len())
	})

	t.Run("rejected request", func(t *testing.T) {
		_, err := adapter.TransformResponse(
			[]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`),
			nil,
		)

		require.ErrorIs(t, err, geocoding.ErrProviderRejected)
		assert.Contains(t, err.Error(), "REQUEST_DENIED")
	})

	t.Run("non-object entries are skipped", func(t *testing.T) {
		payload := `{"status":"OK","results":[null,` +
			`{"formatted_address":"B","place_id":"pb","geometry":{"location":{"lat":1.5,"lng":2.5}}},"x"]}`

		resp, err := adapter.TransformResponse([]byte(payload), nil)

		require.NoError(t, err)
		require.Equal(t, 1, resp.Len())
		out := resp.Results[0].ToMap()
		assert.Equal(t, "pb", out["id"])
		assert.Equal(t, "B", out["label"])
		assert.Equal(t, "1.5", out["lat"])
		additional, _ := out["additional"].(map[string]any)
		assert.NotContains(t, additional, "place_id")
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := adapter.TransformResponse([]byte(`{"results":`), nil)

		require.ErrorIs(t, err, geocoding.ErrMalformedResponse)
	})
}
