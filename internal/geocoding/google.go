package geocoding

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/UnknownOlympus/geogate/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleBaseURL is the Google Maps Geocoding endpoint, used for both directions.
const GoogleBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Google answers 200 with these statuses when the request itself succeeded.
const (
	googleStatusOK          = "OK"
	googleStatusZeroResults = "ZERO_RESULTS"
)

// GoogleAdapter implements the Adapter interface for the Google Maps Geocoding API.
type GoogleAdapter struct {
	baseAdapter
}

var _ Adapter = (*GoogleAdapter)(nil)

// googlePayload is the typed view of a geocoding payload. Coordinates are kept as
// json.Number so they reach the output with the digits Google sent.
type googlePayload struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Results      []json.RawMessage `json:"results"`
}

type googleResult struct {
	AddressComponents []maps.AddressComponent `json:"address_components"`
	FormattedAddress  string                  `json:"formatted_address"`
	PlaceID           string                  `json:"place_id"`
	Geometry          struct {
		Location struct {
			Lat json.Number `json:"lat"`
			Lng json.Number `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
}

// NewGoogleAdapter creates a Google adapter. The API key travels in key.
func NewGoogleAdapter(name string, cfg ProviderConfig) *GoogleAdapter {
	return &GoogleAdapter{baseAdapter: newBaseAdapter(name, adapterDefaults{
		baseURL:     GoogleBaseURL,
		apiKeyParam: "key",
		queryKey:    "address",
		requiresKey: true,
		exclude: []string{
			"address_components",
			"geometry",
			"place_id",
		},
	}, cfg)}
}

// BuildSearchRequest biases results to the first country with region and restricts
// them to all countries with components=country:XX|country:YY.
func (g *GoogleAdapter) BuildSearchRequest(query string, opts SearchOptions) Request {
	params := g.searchParams(nil)
	params.Set(g.queryKey, query)

	if countries := joinCodes(opts.Countries, ",", true); countries != "" {
		codes := strings.Split(countries, ",")
		filters := make([]string, 0, len(codes))
		for _, code := range codes {
			filters = append(filters, string(maps.ComponentCountry)+":"+code)
		}
		params.Set("region", strings.ToLower(codes[0]))
		params.Set("components", strings.Join(filters, "|"))
	}
	if opts.Language != "" {
		params.Set("language", opts.Language)
	}
	g.setAPIKey(params)

	return Request{URL: g.baseURL, Params: params}
}

func (g *GoogleAdapter) BuildReverseRequest(lat, lon float64, opts ReverseOptions) Request {
	params := g.reverseParams(nil)
	params.Set("latlng", formatCoord(lat)+","+formatCoord(lon))

	if opts.Language != "" {
		params.Set("language", opts.Language)
	}
	g.setAPIKey(params)

	return Request{URL: g.reverseURL, Params: params}
}

// TransformResponse maps the results array. A status other than OK or ZERO_RESULTS
// means Google refused the request and is reported as ErrProviderRejected.
func (g *GoogleAdapter) TransformResponse(raw []byte, additionalExclude []string) (models.SearchResponse, error) {
	var payload googlePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.SearchResponse{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if payload.Status != "" && payload.Status != googleStatusOK && payload.Status != googleStatusZeroResults {
		return models.SearchResponse{}, fmt.Errorf("%w: %s %s", ErrProviderRejected, payload.Status, payload.ErrorMessage)
	}

	items := make([]rawItem, 0, len(payload.Results))
	for _, entry := range payload.Results {
		decoded, err := decodePayload(entry)
		if err != nil {
			return models.SearchResponse{}, err
		}
		source := asMap(decoded)
		if source == nil {
			continue
		}

		var result googleResult
		if err = json.Unmarshal(entry, &result); err != nil {
			return models.SearchResponse{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		items = append(items, mapGoogleResult(result, source))
	}

	return normalizeAll(items, g.ExcludeFields(additionalExclude)), nil
}

// TransformReverseResponse uses the same shape as forward search.
func (g *GoogleAdapter) TransformReverseResponse(
	raw []byte,
	additionalExclude []string,
) (models.SearchResponse, error) {
	return g.TransformResponse(raw, additionalExclude)
}

func mapGoogleResult(result googleResult, source map[string]any) rawItem {
	byType := make(map[string]maps.AddressComponent)
	address := make(map[string]any)
	for _, component := range result.AddressComponents {
		for _, typ := range component.Types {
			if _, seen := byType[typ]; !seen {
				byType[typ] = component
			}
		}
		// the first type names the component in the address object
		if len(component.Types) > 0 {
			address[component.Types[0]] = map[string]any{
				"long_name":  component.LongName,
				"short_name": component.ShortName,
			}
		}
	}

	long := func(types ...string) string {
		for _, typ := range types {
			if component, ok := byType[typ]; ok && component.LongName != "" {
				return component.LongName
			}
		}
		return ""
	}

	return rawItem{
		raw:   source,
		label: result.FormattedAddress,
		lat:   result.Geometry.Location.Lat.String(),
		lon:   result.Geometry.Location.Lng.String(),
		typ:   result.Geometry.LocationType,
		fields: models.AddressFields{
			ID:          result.PlaceID,
			Name:        long("locality", "administrative_area_level_1", "country"),
			Street:      long("route"),
			HouseNumber: long("street_number"),
			Postcode:    long("postal_code"),
			City:        long("locality", "postal_town"),
			Region:      long("administrative_area_level_1"),
			Country:     long("country"),
			CountryCode: upper(byType["country"].ShortName),
		},
		address: address,
	}
}
