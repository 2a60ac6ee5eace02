package geocoding

import (
	"net/url"
	"strings"

	"github.com/UnknownOlympus/geogate/internal/models"
)

// MapboxBaseURL is the Mapbox Geocoding v5 places endpoint. Queries and coordinates go
// into the URL path.
const MapboxBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// MapboxAdapter implements the Adapter interface for the Mapbox Geocoding API.
type MapboxAdapter struct {
	baseAdapter
}

var _ Adapter = (*MapboxAdapter)(nil)

// NewMapboxAdapter creates a Mapbox adapter. The access token travels in access_token.
func NewMapboxAdapter(name string, cfg ProviderConfig) *MapboxAdapter {
	return &MapboxAdapter{baseAdapter: newBaseAdapter(name, adapterDefaults{
		baseURL:     MapboxBaseURL,
		apiKeyParam: "access_token",
		requiresKey: true,
		exclude: []string{
			"geometry",
			"properties",
			"relevance",
			"bbox",
		},
	}, cfg)}
}

func (m *MapboxAdapter) BuildSearchRequest(query string, opts SearchOptions) Request {
	params := m.searchParams(nil)

	if len(opts.Countries) > 0 {
		params.Set("country", joinCodes(opts.Countries, ",", false))
	}
	if opts.Language != "" {
		params.Set("language", opts.Language)
	}
	m.setAPIKey(params)

	return Request{
		URL:    strings.TrimRight(m.baseURL, "/") + "/" + url.PathEscape(query) + ".json",
		Params: params,
	}
}

// BuildReverseRequest puts the point as {lon},{lat} into the path.
func (m *MapboxAdapter) BuildReverseRequest(lat, lon float64, opts ReverseOptions) Request {
	params := m.reverseParams(nil)

	if opts.Language != "" {
		params.Set("language", opts.Language)
	}
	m.setAPIKey(params)

	return Request{
		URL:    strings.TrimRight(m.reverseURL, "/") + "/" + formatCoord(lon) + "," + formatCoord(lat) + ".json",
		Params: params,
	}
}

// TransformResponse maps the GeoJSON features array. Context entries such as
// "place.123" or "region.456" become the address object keyed by their type.
func (m *MapboxAdapter) TransformResponse(raw []byte, additionalExclude []string) (models.SearchResponse, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return models.SearchResponse{}, err
	}

	features := objects(asMap(payload)["features"])
	items := make([]rawItem, 0, len(features))
	for _, feature := range features {
		items = append(items, mapMapboxFeature(feature))
	}

	return normalizeAll(items, m.ExcludeFields(additionalExclude)), nil
}

// TransformReverseResponse uses the same shape as forward search.
func (m *MapboxAdapter) TransformReverseResponse(
	raw []byte,
	additionalExclude []string,
) (models.SearchResponse, error) {
	return m.TransformResponse(raw, additionalExclude)
}

func mapMapboxFeature(feature map[string]any) rawItem {
	lon, lat := lonLat(feature["center"])
	if lat == "" {
		lon, lat = lonLat(asMap(feature["geometry"])["coordinates"])
	}

	var typ string
	if placeTypes := asSlice(feature["place_type"]); len(placeTypes) > 0 {
		typ = str(placeTypes[0])
	}

	address := make(map[string]any)
	var countryCode string
	for _, entry := range objects(feature["context"]) {
		kind, _, _ := strings.Cut(str(entry["id"]), ".")
		if kind == "" {
			continue
		}
		address[kind] = str(entry["text"])
		if kind == "country" {
			countryCode = upper(str(entry["short_code"]))
		}
	}

	fields := models.AddressFields{
		ID:          str(feature["id"]),
		Name:        str(feature["text"]),
		Postcode:    str(address["postcode"]),
		City:        str(address["place"]),
		Region:      str(address["region"]),
		Country:     str(address["country"]),
		CountryCode: countryCode,
	}
	if typ == "address" {
		fields.Street = str(feature["text"])
		fields.HouseNumber = str(feature["address"])
	}

	return rawItem{
		raw:     feature,
		label:   str(feature["place_name"]),
		lat:     lat,
		lon:     lon,
		typ:     typ,
		fields:  fields,
		address: address,
	}
}
