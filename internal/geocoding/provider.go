package geocoding

import (
	"net/http"
	"net/url"
	"time"

	"github.com/UnknownOlympus/geogate/internal/models"
)

// Adapter is implemented by every geocoding provider. It knows how to build the
// provider-specific HTTP request and how to map the provider's raw JSON into
// the canonical address shape. Adapters are immutable and safe for concurrent use.
type Adapter interface {
	Name() string
	BuildSearchRequest(query string, opts SearchOptions) Request
	BuildReverseRequest(lat, lon float64, opts ReverseOptions) Request
	// TransformResponse normalizes a forward search payload. additionalExclude is
	// merged with the provider's own exclusion list for this call only.
	TransformResponse(raw []byte, additionalExclude []string) (models.SearchResponse, error)
	TransformReverseResponse(raw []byte, additionalExclude []string) (models.SearchResponse, error)
	RequiresAPIKey() bool
	APIKey() string
	MinDebounceDelay() time.Duration
	DefaultExcludeFields() []string
	ExcludeFields(additional []string) []string
}

// SearchOptions narrows a forward search.
type SearchOptions struct {
	Countries []string // ISO 3166-1 alpha-2 codes, any case
	Language  string
}

// ReverseOptions tunes a reverse lookup.
type ReverseOptions struct {
	Language string
}

// Request is an outbound GET request: the endpoint and its query parameters.
type Request struct {
	URL    string
	Params url.Values
}

// String returns the full request URL including the encoded query string.
func (r Request) String() string {
	if len(r.Params) == 0 {
		return r.URL
	}

	return r.URL + "?" + r.Params.Encode()
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
