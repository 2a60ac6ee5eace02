package models

import "strconv"

// Coordinates represents a geographical point defined by its latitude and longitude.
type Coordinates struct {
	Latitude  float64 // Latitude of the geographical point, -90..90.
	Longitude float64 // Longitude of the geographical point, -180..180.
}

// String renders the point as "lat,lon" using the shortest representation
// that round-trips, so equal points always produce equal strings.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
