package models

import "encoding/json"

// SearchResponse is an ordered list of results as returned by the provider.
// Reverse lookups produce at most one result.
type SearchResponse struct {
	Results []AddressResult
}

// Len returns the number of results.
func (s SearchResponse) Len() int {
	return len(s.Results)
}

// MarshalJSON renders {"results": [...]}, never null.
func (s SearchResponse) MarshalJSON() ([]byte, error) {
	results := s.Results
	if results == nil {
		results = []AddressResult{}
	}

	return json.Marshal(struct {
		Results []AddressResult `json:"results"`
	}{Results: results})
}
