package screen

import (
	"github.com/woozymasta/ecopoints/internal/geo"
	"github.com/woozymasta/ecopoints/internal/model"
)

// regionDelta is the initial lat/long span shown around the map center.
const regionDelta = 0.014

// Marker is one interactive map pin, keyed by point id.
type Marker struct {
	Title      string
	ImageURL   string
	Position   geo.Coordinate
	ID         int64
	DistanceKm float64
}

// MapFrame is the renderable state of the map area.
type MapFrame struct {
	Markers        []Marker
	Center         geo.Coordinate
	LatitudeDelta  float64
	LongitudeDelta float64
}

func newMapFrame(center geo.Coordinate, points []model.Point) MapFrame {
	seen := make(map[int64]struct{}, len(points))
	markers := make([]Marker, 0, len(points))

	for _, p := range points {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}

		pos := p.Position()
		markers = append(markers, Marker{
			ID:         p.ID,
			Title:      p.Name,
			ImageURL:   p.ImageURL,
			Position:   pos,
			DistanceKm: geo.Distance(center, pos),
		})
	}

	return MapFrame{
		Center:         center,
		LatitudeDelta:  regionDelta,
		LongitudeDelta: regionDelta,
		Markers:        markers,
	}
}

// Marker returns the marker for point id.
func (f MapFrame) Marker(id int64) (Marker, bool) {
	for _, m := range f.Markers {
		if m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

// GeoJSON renders the markers, and the center as a separate feature.
func (f MapFrame) GeoJSON() geo.GeoJSONFeatureCollection {
	fc := geo.NewFeatureCollection()
	fc.Features = append(fc.Features, geo.PointFeature(f.Center, map[string]any{
		"type": "center",
	}))

	for _, m := range f.Markers {
		fc.Features = append(fc.Features, geo.PointFeature(m.Position, map[string]any{
			"type":        "marker",
			"id":          m.ID,
			"name":        m.Title,
			"image_url":   m.ImageURL,
			"distance_km": m.DistanceKm,
		}))
	}

	return fc
}
