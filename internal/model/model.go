// Package model holds the catalog entities exchanged with the catalog service.
package model

import "github.com/woozymasta/ecopoints/internal/geo"

// Category is a material type selectable as a query constraint.
// Lat/Long are carried for legacy display only and never used by queries.
type Category struct {
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	ID       int64   `json:"id"`
	Lat      float64 `json:"lat"`
	Long     float64 `json:"long"`
}

// Point is a single collection location returned by a filtered query.
type Point struct {
	Name     string  `json:"name"`
	Image    string  `json:"image"`
	ImageURL string  `json:"image_url"`
	ID       int64   `json:"id"`
	Lat      float64 `json:"lat"`
	Long     float64 `json:"long"`
}

// Position returns the point's map coordinate.
func (p Point) Position() geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Long: p.Long}
}

// PointContact is the location block of a point detail.
type PointContact struct {
	Image    string `json:"image"`
	ImageURL string `json:"image_url"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Whatsapp string `json:"wpp"`
	City     string `json:"city"`
	State    string `json:"state"`
}

// PointItem names one category accepted at a point.
type PointItem struct {
	Title string `json:"title"`
}

// PointDetail is the contact view of a single point.
type PointDetail struct {
	Items    []PointItem  `json:"items"`
	Location PointContact `json:"location"`
}

// ItemTitles returns the titles of the categories the point accepts.
func (d PointDetail) ItemTitles() []string {
	titles := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		titles = append(titles, it.Title)
	}
	return titles
}
