package geo

import "math"

const earthRadiusKm = 6371.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat  float64 `json:"lat" yaml:"lat"`
	Long float64 `json:"long" yaml:"long"`
}

// IsZero reports whether c is the degenerate (0,0) coordinate.
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Long == 0
}

// Valid reports whether c lies within the WGS84 latitude and longitude ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Long >= -180 && c.Long <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Long)
}

// Distance returns the great-circle (haversine) distance between a and b in kilometers.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := lat2 - lat1
	dLon := (b.Long - a.Long) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
