package geocoding

import (
	"fmt"
	"time"

	"github.com/UnknownOlympus/geogate/internal/models"
)

// Nominatim endpoints of the public OpenStreetMap instance.
const (
	NominatimBaseURL        = "https://nominatim.openstreetmap.org/search"
	NominatimReverseBaseURL = "https://nominatim.openstreetmap.org/reverse"
)

// NominatimAdapter implements the Adapter interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use),
// so its default minimum delay is one second.
type NominatimAdapter struct {
	baseAdapter
}

var _ Adapter = (*NominatimAdapter)(nil)

// NewNominatimAdapter creates a Nominatim adapter. No API key is required.
func NewNominatimAdapter(name string, cfg ProviderConfig) *NominatimAdapter {
	return &NominatimAdapter{baseAdapter: newBaseAdapter(name, adapterDefaults{
		baseURL:    NominatimBaseURL,
		reverseURL: NominatimReverseBaseURL,
		queryKey:   "q",
		minDelay:   time.Second,
		exclude: []string{
			"boundingbox",
			"bbox",
			"class",
			"datasource",
			"display_name",
			"icon",
			"importance",
			"licence",
			"osm_id",
			"osm_type",
			"other_names",
			"place_id",
			"rank",
		},
	}, cfg)}
}

// BuildSearchRequest builds a free-form search. Country codes are passed lower-cased
// and comma-joined in countrycodes, the language in accept-language.
func (n *NominatimAdapter) BuildSearchRequest(query string, opts SearchOptions) Request {
	params := n.searchParams(map[string]string{
		"addressdetails": "1",
		"format":         "json",
	})
	params.Set(n.queryKey, query)

	if len(opts.Countries) > 0 {
		params.Set("countrycodes", joinCodes(opts.Countries, ",", false))
	}
	if opts.Language != "" {
		params.Set("accept-language", opts.Language)
	}
	n.setAPIKey(params)

	return Request{URL: n.baseURL, Params: params}
}

// BuildReverseRequest builds a reverse lookup at building zoom level.
func (n *NominatimAdapter) BuildReverseRequest(lat, lon float64, opts ReverseOptions) Request {
	params := n.reverseParams(map[string]string{
		"format":         "json",
		"addressdetails": "1",
		"zoom":           "18",
	})
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lon))

	if opts.Language != "" {
		params.Set("accept-language", opts.Language)
	}
	n.setAPIKey(params)

	return Request{URL: n.reverseURL, Params: params}
}

// TransformResponse maps a search payload, a top-level JSON array of places.
func (n *NominatimAdapter) TransformResponse(raw []byte, additionalExclude []string) (models.SearchResponse, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return models.SearchResponse{}, err
	}

	return n.transform(payload, additionalExclude)
}

// TransformReverseResponse maps a reverse payload. The reverse endpoint returns a single
// object rather than an array; it is wrapped into a one-element list. A lookup without
// a match returns {"error": "..."} and yields an empty response.
func (n *NominatimAdapter) TransformReverseResponse(
	raw []byte,
	additionalExclude []string,
) (models.SearchResponse, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return models.SearchResponse{}, err
	}

	if obj := asMap(payload); obj != nil {
		_, hasLat := obj["lat"]
		_, wrapped := obj["0"]
		if hasLat && !wrapped {
			payload = []any{obj}
		}
	}

	return n.transform(payload, additionalExclude)
}

func (n *NominatimAdapter) transform(payload any, additionalExclude []string) (models.SearchResponse, error) {
	switch value := payload.(type) {
	case []any:
		items := make([]rawItem, 0, len(value))
		for _, place := range objects(value) {
			items = append(items, n.mapPlace(place))
		}
		return normalizeAll(items, n.ExcludeFields(additionalExclude)), nil
	case map[string]any:
		if _, ok := value["error"]; ok {
			return models.SearchResponse{Results: []models.AddressResult{}}, nil
		}
	}

	return models.SearchResponse{}, fmt.Errorf("%w: nominatim payload is not a list of places", ErrMalformedResponse)
}

func (n *NominatimAdapter) mapPlace(place map[string]any) rawItem {
	address := asMap(place["address"])

	return rawItem{
		raw:   place,
		label: firstString(place, "label", "display_name"),
		lat:   str(place["lat"]),
		lon:   str(place["lon"]),
		typ:   str(place["type"]),
		fields: models.AddressFields{
			ID:          firstString(place, "osm_id", "place_id"),
			Name:        str(place["name"]),
			Street:      str(address["road"]),
			HouseNumber: str(address["house_number"]),
			Postcode:    str(address["postcode"]),
			City:        firstString(address, "city", "town", "village", "municipality", "hamlet"),
			Region:      str(address["state"]),
			Country:     str(address["country"]),
			CountryCode: upper(str(address["country_code"])),
		},
		address: address,
	}
}
