package geocoding

import (
	"github.com/UnknownOlympus/geogate/internal/models"
)

// Geoapify endpoints.
const (
	GeoapifyBaseURL        = "https://api.geoapify.com/v1/geocode/search"
	GeoapifyReverseBaseURL = "https://api.geoapify.com/v1/geocode/reverse"
)

// GeoapifyAdapter implements the Adapter interface for the Geoapify geocoding API.
type GeoapifyAdapter struct {
	baseAdapter
}

var _ Adapter = (*GeoapifyAdapter)(nil)

// NewGeoapifyAdapter creates a Geoapify adapter. The API key travels in apiKey.
func NewGeoapifyAdapter(name string, cfg ProviderConfig) *GeoapifyAdapter {
	return &GeoapifyAdapter{baseAdapter: newBaseAdapter(name, adapterDefaults{
		baseURL:     GeoapifyBaseURL,
		reverseURL:  GeoapifyReverseBaseURL,
		apiKeyParam: "apiKey",
		queryKey:    "text",
		requiresKey: true,
		exclude: []string{
			"bbox",
			"geometry",
			"place_id",
			"query",
			"rank",
			"namedetails",
		},
	}, cfg)}
}

// BuildSearchRequest filters countries with filter=countrycode:xx,yy.
func (g *GeoapifyAdapter) BuildSearchRequest(query string, opts SearchOptions) Request {
	params := g.searchParams(map[string]string{"format": "json"})
	params.Set(g.queryKey, query)

	if len(opts.Countries) > 0 {
		params.Set("filter", "countrycode:"+joinCodes(opts.Countries, ",", false))
	}
	if opts.Language != "" {
		params.Set("lang", opts.Language)
	}
	g.setAPIKey(params)

	return Request{URL: g.baseURL, Params: params}
}

func (g *GeoapifyAdapter) BuildReverseRequest(lat, lon float64, opts ReverseOptions) Request {
	params := g.reverseParams(map[string]string{"format": "json"})
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lon))

	if opts.Language != "" {
		params.Set("lang", opts.Language)
	}
	g.setAPIKey(params)

	return Request{URL: g.reverseURL, Params: params}
}

// TransformResponse maps the results array of a format=json payload.
func (g *GeoapifyAdapter) TransformResponse(raw []byte, additionalExclude []string) (models.SearchResponse, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return models.SearchResponse{}, err
	}

	results := objects(asMap(payload)["results"])
	items := make([]rawItem, 0, len(results))
	for _, result := range results {
		items = append(items, rawItem{
			raw:   result,
			label: str(result["formatted"]),
			lat:   str(result["lat"]),
			lon:   str(result["lon"]),
			typ:   str(result["result_type"]),
			fields: models.AddressFields{
				ID:          str(result["place_id"]),
				Name:        str(result["name"]),
				Street:      str(result["street"]),
				HouseNumber: str(result["housenumber"]),
				Postcode:    str(result["postcode"]),
				City:        firstString(result, "city", "town", "village"),
				Region:      str(result["state"]),
				Country:     str(result["country"]),
				CountryCode: upper(str(result["country_code"])),
			},
			address: asMap(result["address"]),
		})
	}

	return normalizeAll(items, g.ExcludeFields(additionalExclude)), nil
}

// TransformReverseResponse uses the same shape as forward search.
func (g *GeoapifyAdapter) TransformReverseResponse(
	raw []byte,
	additionalExclude []string,
) (models.SearchResponse, error) {
	return g.TransformResponse(raw, additionalExclude)
}
