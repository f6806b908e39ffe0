package screen

import "fmt"

// EventKind classifies screen events.
type EventKind int

const (
	// CatalogLoaded fires once the category universe is available.
	CatalogLoaded EventKind = iota
	// CatalogLoadFailed fires when the category fetch fails; Err is a *CatalogLoadError.
	CatalogLoadFailed
	// LocationResolved fires once when the map center becomes known.
	LocationResolved
	// PermissionDenied is the one-time advisory for a refused location permission.
	PermissionDenied
	// LocationUnavailable fires when the fix could not be resolved.
	LocationUnavailable
	// ResultsReplaced fires when a query response replaced the result set.
	ResultsReplaced
	// QueryFailed fires when the current query failed; Err is a *QueryError.
	QueryFailed
	// StaleDropped fires when a superseded query response was discarded.
	StaleDropped
)

var kindNames = [...]string{
	CatalogLoaded:       "catalog_loaded",
	CatalogLoadFailed:   "catalog_load_failed",
	LocationResolved:    "location_resolved",
	PermissionDenied:    "permission_denied",
	LocationUnavailable: "location_unavailable",
	ResultsReplaced:     "results_replaced",
	QueryFailed:         "query_failed",
	StaleDropped:        "stale_dropped",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("event(%d)", int(k))
	}
	return kindNames[k]
}

// Event is delivered to the screen Listener.
type Event struct {
	Err        error
	Kind       EventKind
	Generation uint64
	Count      int
}

// Listener receives events on the screen's loop goroutine. It must not block
// and must not call back into the screen's blocking commands.
type Listener func(Event)
