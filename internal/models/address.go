package models

import (
	"encoding/json"
	"maps"
)

// AddressFields holds the structured parts of an address extracted from a provider item.
// Every field is optional.
type AddressFields struct {
	ID          string
	Name        string
	Street      string
	HouseNumber string
	Postcode    string
	City        string
	Region      string
	Country     string
	CountryCode string
}

// AddressResult is one normalized geocoding hit.
//
// Lat and Lon keep the provider's original numeric text. Address is the raw address
// sub-object as returned by the provider, Additional carries every unmapped raw key
// that was not excluded.
type AddressResult struct {
	Label string
	Lat   string
	Lon   string
	Type  string
	AddressFields

	Address    map[string]any
	Additional map[string]any
}

// NewAddressResult builds a result, copying the maps so the value cannot be
// changed through references held by the caller.
func NewAddressResult(
	label, lat, lon, typ string,
	fields AddressFields,
	address, additional map[string]any,
) AddressResult {
	return AddressResult{
		Label:         label,
		Lat:           lat,
		Lon:           lon,
		Type:          typ,
		AddressFields: fields,
		Address:       maps.Clone(address),
		Additional:    maps.Clone(additional),
	}
}

// ToMap returns the externally visible representation of the result.
// Null and empty-string values are dropped, as are empty nested objects.
func (r AddressResult) ToMap() map[string]any {
	out := map[string]any{}

	putString(out, "label", r.Label)
	putString(out, "lat", r.Lat)
	putString(out, "lon", r.Lon)
	putString(out, "type", r.Type)
	putString(out, "id", r.ID)
	putString(out, "name", r.Name)
	putString(out, "street", r.Street)
	putString(out, "houseNumber", r.HouseNumber)
	putString(out, "postcode", r.Postcode)
	putString(out, "city", r.City)
	putString(out, "region", r.Region)
	putString(out, "country", r.Country)
	putString(out, "countryCode", r.CountryCode)

	if address := compact(r.Address); len(address) > 0 {
		out["address"] = address
	}
	if additional := compact(r.Additional); len(additional) > 0 {
		out["additional"] = additional
	}

	return out
}

// MarshalJSON implements json.Marshaler.
func (r AddressResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

func putString(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}

func compact(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if IsBlank(value) {
			continue
		}
		out[key] = value
	}

	return out
}

// IsBlank reports whether a raw value counts as absent: nil or the empty string.
func IsBlank(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)

	return ok && s == ""
}
