package geolocation

import (
	"context"

	"github.com/woozymasta/ecopoints/internal/geo"
)

// Static is a Locator with a preconfigured answer, used by the command line
// client where no device location service exists.
type Static struct {
	Fix  geo.Coordinate
	Deny bool
}

// RequestPermission grants access unless Deny is set.
func (s Static) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !s.Deny, nil
}

// CurrentFix returns the configured coordinate.
func (s Static) CurrentFix(ctx context.Context) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}
	return s.Fix, nil
}
