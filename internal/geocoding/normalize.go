package geocoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/geogate/internal/models"
)

// canonicalKeys never enter the additional bag.
var canonicalKeys = map[string]struct{}{
	"label":        {},
	"display_name": {},
	"lat":          {},
	"lon":          {},
	"type":         {},
	"name":         {},
	"address":      {},
}

// rawItem is a provider item after provider-specific field mapping.
type rawItem struct {
	raw     map[string]any // source of the additional bag
	label   string
	lat     string
	lon     string
	typ     string
	fields  models.AddressFields
	address map[string]any
}

// normalize turns a mapped item into an AddressResult. Every field named in exclude is
// dropped from both the top-level output and the additional bag.
func normalize(item rawItem, exclude []string) models.AddressResult {
	excluded := make(map[string]struct{}, len(exclude))
	for _, field := range exclude {
		excluded[field] = struct{}{}
	}
	drop := func(key string, value *string) {
		if _, ok := excluded[key]; ok {
			*value = ""
		}
	}

	additional := make(map[string]any, len(item.raw))
	for key, value := range item.raw {
		if _, ok := canonicalKeys[key]; ok {
			continue
		}
		if _, ok := excluded[key]; ok {
			continue
		}
		additional[key] = value
	}

	label, lat, lon, typ := item.label, item.lat, item.lon, item.typ
	fields := item.fields
	drop("label", &label)
	drop("lat", &lat)
	drop("lon", &lon)
	drop("type", &typ)
	drop("id", &fields.ID)
	drop("name", &fields.Name)
	drop("street", &fields.Street)
	drop("houseNumber", &fields.HouseNumber)
	drop("postcode", &fields.Postcode)
	drop("city", &fields.City)
	drop("region", &fields.Region)
	drop("country", &fields.Country)
	drop("countryCode", &fields.CountryCode)

	address := item.address
	if _, ok := excluded["address"]; ok {
		address = nil
	}

	return models.NewAddressResult(label, lat, lon, typ, fields, address, additional)
}

func normalizeAll(items []rawItem, exclude []string) models.SearchResponse {
	results := make([]models.AddressResult, 0, len(items))
	for _, item := range items {
		results = append(results, normalize(item, exclude))
	}

	return models.SearchResponse{Results: results}
}

// decodePayload parses raw JSON keeping numbers as json.Number, so coordinates
// survive without float formatting.
func decodePayload(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return payload, nil
}

func asMap(value any) map[string]any {
	m, _ := value.(map[string]any)
	return m
}

func asSlice(value any) []any {
	s, _ := value.([]any)
	return s
}

// objects keeps the JSON objects of a list, skipping anything else.
func objects(value any) []map[string]any {
	list := asSlice(value)
	out := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if m := asMap(entry); m != nil {
			out = append(out, m)
		}
	}

	return out
}

// str renders a scalar JSON value as text. Numbers keep their original digits.
func str(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// firstString returns the first non-empty value among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := str(m[key]); s != "" {
			return s
		}
	}

	return ""
}

// lonLat reads a GeoJSON [lon, lat] pair.
func lonLat(value any) (string, string) {
	pair := asSlice(value)
	const pairLen = 2
	if len(pair) < pairLen {
		return "", ""
	}

	return str(pair[0]), str(pair[1])
}

func upper(value string) string {
	return strings.ToUpper(value)
}
