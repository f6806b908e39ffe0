// Package query tracks filter-triggered point queries by generation so that
// only the response to the most recently issued query is ever applied.
package query

import (
	"context"
	"fmt"
	"slices"

	"github.com/woozymasta/ecopoints/internal/catalog"
	"github.com/woozymasta/ecopoints/internal/filter"
	"github.com/woozymasta/ecopoints/internal/model"
)

// Source is the read side of the catalog service used for point queries.
type Source interface {
	Points(ctx context.Context, q catalog.PointsQuery) ([]model.Point, error)
}

// Outcome describes what Apply did with a response.
type Outcome int

const (
	// Applied means the response replaced the result set.
	Applied Outcome = iota
	// Stale means the response belonged to a superseded generation and was dropped.
	Stale
	// Failed means the current query failed and the previous result set was kept.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Ticket identifies one issued query.
type Ticket struct {
	Filter     filter.Filter
	Generation uint64
}

// Query converts the ticket's filter into catalog query parameters.
// An empty selection yields no category constraint.
func (t Ticket) Query() catalog.PointsQuery {
	return catalog.PointsQuery{
		City:  t.Filter.Region.City,
		State: t.Filter.Region.State,
		Items: t.Filter.Items(),
	}
}

// Response is the completion of one ticket.
type Response struct {
	Err    error
	Points []model.Point
	Ticket Ticket
}

// Error wraps a failed query of the current generation.
type Error struct {
	Err        error
	Items      []int64
	Generation uint64
}

func (e *Error) Error() string {
	return fmt.Sprintf("query generation %d (items %v): %v", e.Generation, e.Items, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Coordinator issues generations and applies responses in generation order.
//
// Issue, Apply and the read accessors must be called from a single owner
// goroutine. Fetch only touches the immutable source and may run anywhere.
type Coordinator struct {
	source  Source
	results []model.Point
	latest  uint64
	applied uint64
	dropped int
}

// NewCoordinator returns a coordinator reading points from source.
func NewCoordinator(source Source) *Coordinator {
	return &Coordinator{source: source}
}

// Issue starts a new generation for f. Any earlier outstanding ticket becomes stale.
func (c *Coordinator) Issue(f filter.Filter) Ticket {
	c.latest++
	return Ticket{Generation: c.latest, Filter: f}
}

// Fetch performs the blocking catalog call for t.
func (c *Coordinator) Fetch(ctx context.Context, t Ticket) Response {
	points, err := c.source.Points(ctx, t.Query())
	return Response{Ticket: t, Points: points, Err: err}
}

// Apply folds a response into the result set. Only a response for the latest
// issued generation has any effect; anything older is dropped unconditionally,
// whether it succeeded or failed and regardless of arrival order.
func (c *Coordinator) Apply(r Response) (Outcome, error) {
	if r.Ticket.Generation != c.latest {
		c.dropped++
		return Stale, nil
	}

	if r.Err != nil {
		return Failed, &Error{
			Generation: r.Ticket.Generation,
			Items:      r.Ticket.Filter.Items(),
			Err:        r.Err,
		}
	}

	c.results = slices.Clone(r.Points)
	if c.results == nil {
		c.results = []model.Point{}
	}
	c.applied = r.Ticket.Generation

	return Applied, nil
}

// Results returns a copy of the current result set.
func (c *Coordinator) Results() []model.Point {
	return slices.Clone(c.results)
}

// Latest returns the most recently issued generation, 0 if none.
func (c *Coordinator) Latest() uint64 { return c.latest }

// AppliedGeneration returns the generation whose response is displayed, 0 if none.
func (c *Coordinator) AppliedGeneration() uint64 { return c.applied }

// Dropped returns the number of stale responses discarded so far.
func (c *Coordinator) Dropped() int { return c.dropped }
