// README: Common value objects shared across modules.
package types

// ID is an opaque user or record identifier.
type ID string

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies in the representable lat/lng range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
