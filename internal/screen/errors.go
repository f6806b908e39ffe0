package screen

import (
	"errors"
	"fmt"

	"github.com/woozymasta/ecopoints/internal/geolocation"
	"github.com/woozymasta/ecopoints/internal/query"
)

var (
	// ErrInactive is returned by commands issued before Activate or after deactivation.
	ErrInactive = errors.New("screen is not active")
	// ErrAlreadyActivated is returned when Activate is called a second time.
	ErrAlreadyActivated = errors.New("screen already activated")
	// ErrUnknownCategory is returned when toggling an id missing from the loaded catalog.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrUnknownMarker is returned when pressing an id that has no marker.
	ErrUnknownMarker = errors.New("unknown marker")
	// ErrMapInactive is returned when pressing a marker while the map is not rendered.
	ErrMapInactive = errors.New("map is not rendered")

	// ErrPermissionDenied is the advisory surfaced when location access is refused.
	ErrPermissionDenied = geolocation.ErrPermissionDenied
	// ErrLocationUnavailable is surfaced when no fix could be resolved.
	ErrLocationUnavailable = geolocation.ErrLocationUnavailable
)

// QueryError reports a failed point query of the current generation.
type QueryError = query.Error

// CatalogLoadError reports a failed category catalog fetch.
type CatalogLoadError struct {
	Err error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("load categories: %v", e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }
