package geocoding

import (
	"maps"

	"github.com/UnknownOlympus/geogate/internal/models"
)

// Geocodify endpoints.
const (
	GeocodifyBaseURL        = "https://api.geocodify.com/v2/geocode"
	GeocodifyReverseBaseURL = "https://api.geocodify.com/v2/reverse"
)

// GeocodifyAdapter implements the Adapter interface for Geocodify, which answers with
// a Pelias-style GeoJSON document wrapped in a "response" envelope.
type GeocodifyAdapter struct {
	baseAdapter
}

var _ Adapter = (*GeocodifyAdapter)(nil)

// NewGeocodifyAdapter creates a Geocodify adapter. The API key travels in api_key.
func NewGeocodifyAdapter(name string, cfg ProviderConfig) *GeocodifyAdapter {
	return &GeocodifyAdapter{baseAdapter: newBaseAdapter(name, adapterDefaults{
		baseURL:     GeocodifyBaseURL,
		reverseURL:  GeocodifyReverseBaseURL,
		apiKeyParam: "api_key",
		queryKey:    "q",
		requiresKey: true,
		exclude: []string{
			"bbox",
			"gid",
			"source",
			"source_id",
			"accuracy",
			"confidence",
			"match_type",
			"distance",
		},
	}, cfg)}
}

// BuildSearchRequest restricts countries with boundary.country (upper-case, comma-joined).
func (g *GeocodifyAdapter) BuildSearchRequest(query string, opts SearchOptions) Request {
	params := g.searchParams(nil)
	params.Set(g.queryKey, query)

	if len(opts.Countries) > 0 {
		params.Set("boundary.country", joinCodes(opts.Countries, ",", true))
	}
	if opts.Language != "" {
		params.Set("lang", opts.Language)
	}
	g.setAPIKey(params)

	return Request{URL: g.baseURL, Params: params}
}

func (g *GeocodifyAdapter) BuildReverseRequest(lat, lon float64, opts ReverseOptions) Request {
	params := g.reverseParams(nil)
	params.Set("lat", formatCoord(lat))
	params.Set("lng", formatCoord(lon))

	if opts.Language != "" {
		params.Set("lang", opts.Language)
	}
	g.setAPIKey(params)

	return Request{URL: g.reverseURL, Params: params}
}

// TransformResponse maps response.features[].properties. Coordinates come from the
// feature geometry when the properties carry none.
func (g *GeocodifyAdapter) TransformResponse(raw []byte, additionalExclude []string) (models.SearchResponse, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return models.SearchResponse{}, err
	}

	features := objects(asMap(asMap(payload)["response"])["features"])
	items := make([]rawItem, 0, len(features))
	for _, feature := range features {
		props := maps.Clone(asMap(feature["properties"]))
		if props == nil {
			props = map[string]any{}
		}

		lon, lat := lonLat(asMap(feature["geometry"])["coordinates"])
		if s := str(props["lat"]); s != "" {
			lat = s
		}
		if s := str(props["lon"]); s != "" {
			lon = s
		}

		items = append(items, rawItem{
			raw:   props,
			label: str(props["label"]),
			lat:   lat,
			lon:   lon,
			typ:   str(props["layer"]),
			fields: models.AddressFields{
				ID:          firstString(props, "id", "gid"),
				Name:        str(props["name"]),
				Street:      str(props["street"]),
				HouseNumber: str(props["housenumber"]),
				Postcode:    str(props["postalcode"]),
				City:        firstString(props, "locality", "localadmin", "county"),
				Region:      str(props["region"]),
				Country:     str(props["country"]),
				CountryCode: upper(firstString(props, "country_code", "country_a")),
			},
			address: asMap(props["address"]),
		})
	}

	return normalizeAll(items, g.ExcludeFields(additionalExclude)), nil
}

// TransformReverseResponse uses the same shape as forward search.
func (g *GeocodifyAdapter) TransformReverseResponse(
	raw []byte,
	additionalExclude []string,
) (models.SearchResponse, error) {
	return g.TransformResponse(raw, additionalExclude)
}
