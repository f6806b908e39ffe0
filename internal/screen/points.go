// Package screen implements the collection point search screen controller:
// category catalog, location gate, filter state, query coordination and map markers.
package screen

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/woozymasta/ecopoints/internal/filter"
	"github.com/woozymasta/ecopoints/internal/geo"
	"github.com/woozymasta/ecopoints/internal/geolocation"
	"github.com/woozymasta/ecopoints/internal/model"
	"github.com/woozymasta/ecopoints/internal/navigation"
	"github.com/woozymasta/ecopoints/internal/query"

	"github.com/rs/zerolog/log"
)

// Catalog is the read side of the catalog service used by the screen.
type Catalog interface {
	query.Source
	Categories(ctx context.Context) ([]model.Category, error)
}

// Points is the search screen controller. All mutable state is owned by a
// single loop goroutine started by Activate; commands and async completions
// reach it as messages and are applied one at a time.
type Points struct {
	catalog  Catalog
	acquirer *geolocation.Acquirer
	nav      navigation.Navigator
	listener Listener
	coord    *query.Coordinator

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex

	// commands from callers, always executed once received
	cmds chan func()
	// completions of async work, dropped after deactivation
	results chan func()
	done    chan struct{}

	state   atomic.Int32
	region  filter.Region
	filter  filter.Filter
	cats    map[int64]model.Category
	catList []model.Category
	fix     geo.Coordinate
	located bool
	advised bool
}

const (
	stateNew int32 = iota
	stateActive
	stateClosed
)

// Option customizes a Points screen.
type Option func(*Points)

// WithListener registers l to receive screen events.
func WithListener(l Listener) Option {
	return func(p *Points) { p.listener = l }
}

// NewPoints builds an inactive search screen for region.
func NewPoints(
	region filter.Region,
	catalog Catalog,
	locator geolocation.Locator,
	nav navigation.Navigator,
	opts ...Option,
) *Points {
	p := &Points{
		catalog:  catalog,
		acquirer: geolocation.NewAcquirer(locator),
		nav:      nav,
		coord:    query.NewCoordinator(catalog),
		cmds:     make(chan func()),
		results:  make(chan func()),
		done:     make(chan struct{}),
		region:   region,
		filter:   filter.New(region),
		cats:     map[int64]model.Category{},
		catList:  []model.Category{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Activate starts the screen: the catalog load, the location acquisition and
// the initial region query are started concurrently. The screen deactivates
// when ctx is done or Deactivate is called. A screen activates at most once.
func (p *Points) Activate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Load() != stateNew {
		return ErrAlreadyActivated
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	log.Info().
		Str("state", p.region.State).
		Str("city", p.region.City).
		Msg("Activating points screen")

	p.issue()
	go p.loadCatalog()
	go p.acquireLocation()

	p.state.Store(stateActive)
	go p.run()

	return nil
}

// Deactivate stops the screen and waits for its loop to exit. No result is
// applied afterwards. It is safe to call more than once or before Activate.
func (p *Points) Deactivate() {
	p.mu.Lock()
	if p.state.Load() == stateNew {
		p.state.Store(stateClosed)
		close(p.done)
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-p.done
}

// Done is closed once the screen has stopped.
func (p *Points) Done() <-chan struct{} {
	return p.done
}

// ToggleCategory flips the selection of category id and re-issues the query.
func (p *Points) ToggleCategory(id int64) error {
	var err error
	callErr := p.call(func() {
		if p.ctx.Err() != nil {
			err = ErrInactive
			return
		}
		if _, ok := p.cats[id]; !ok {
			err = ErrUnknownCategory
			return
		}

		p.filter = p.filter.Toggle(id)
		log.Debug().
			Int64("category", id).
			Bool("selected", p.filter.Selected(id)).
			Ints64("items", p.filter.Items()).
			Msg("Category toggled")

		p.issue()
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// PressMarker emits a Detail navigation request for point id. It does not
// touch the filter or the result set.
func (p *Points) PressMarker(id int64) error {
	var err error
	callErr := p.call(func() {
		if !p.located {
			err = ErrMapInactive
			return
		}
		if !slices.ContainsFunc(p.coord.Results(), func(pt model.Point) bool { return pt.ID == id }) {
			err = ErrUnknownMarker
			return
		}

		log.Debug().Int64("point", id).Msg("Marker pressed")
		p.nav.Navigate(navigation.ScreenDetail, map[string]any{navigation.ParamPointID: id})
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// GoBack forwards a back request to the navigator.
func (p *Points) GoBack() {
	p.nav.GoBack()
}

// Snapshot returns a consistent copy of the screen state. After the screen
// stopped it returns the final state.
func (p *Points) Snapshot() Snapshot {
	var s Snapshot
	if err := p.call(func() { s = p.snapshot() }); err != nil {
		// loop is not running: before Activate or after it exited
		return p.snapshot()
	}
	return s
}

// MapFrame returns the renderable map, or false while the location is unresolved.
func (p *Points) MapFrame() (MapFrame, bool) {
	return p.Snapshot().MapFrame()
}

func (p *Points) snapshot() Snapshot {
	return Snapshot{
		Region:            p.region,
		Filter:            p.filter,
		Categories:        slices.Clone(p.catList),
		Results:           p.coord.Results(),
		Fix:               p.fix,
		Located:           p.located,
		Location:          p.acquirer.State(),
		Generation:        p.coord.Latest(),
		AppliedGeneration: p.coord.AppliedGeneration(),
		Dropped:           p.coord.Dropped(),
		Active:            p.state.Load() == stateActive,
	}
}

func (p *Points) run() {
	defer close(p.done)
	defer p.state.Store(stateClosed)

	for {
		select {
		case <-p.ctx.Done():
			log.Debug().Msg("Points screen deactivated")
			return
		case fn := <-p.cmds:
			fn()
		case fn := <-p.results:
			if p.ctx.Err() != nil {
				return
			}
			fn()
		}
	}
}

// call runs fn on the loop and waits for it. It fails when the loop is not running.
func (p *Points) call(fn func()) error {
	if p.state.Load() != stateActive {
		return ErrInactive
	}

	finished := make(chan struct{})
	select {
	case p.cmds <- func() { fn(); close(finished) }:
	case <-p.done:
		return ErrInactive
	}
	<-finished

	return nil
}

// post hands an async completion to the loop, giving up on deactivation.
func (p *Points) post(fn func()) {
	select {
	case p.results <- fn:
	case <-p.ctx.Done():
	}
}

func (p *Points) emit(ev Event) {
	if p.listener != nil {
		p.listener(ev)
	}
}

// issue starts a new query generation for the current filter. Loop-owned.
func (p *Points) issue() {
	ticket := p.coord.Issue(p.filter)

	log.Debug().
		Uint64("generation", ticket.Generation).
		Ints64("items", ticket.Filter.Items()).
		Msg("Point query issued")

	go func() {
		resp := p.coord.Fetch(p.ctx, ticket)
		p.post(func() { p.applyPoints(resp) })
	}()
}

func (p *Points) applyPoints(resp query.Response) {
	outcome, err := p.coord.Apply(resp)
	gen := resp.Ticket.Generation

	switch outcome {
	case query.Applied:
		log.Debug().
			Uint64("generation", gen).
			Int("points", len(resp.Points)).
			Msg("Point results replaced")
		p.emit(Event{Kind: ResultsReplaced, Generation: gen, Count: len(resp.Points)})

	case query.Stale:
		log.Debug().
			Uint64("generation", gen).
			Uint64("latest", p.coord.Latest()).
			Msg("Stale point response dropped")
		p.emit(Event{Kind: StaleDropped, Generation: gen})

	case query.Failed:
		log.Warn().Err(err).Uint64("generation", gen).Msg("Point query failed, keeping previous results")
		p.emit(Event{Kind: QueryFailed, Generation: gen, Err: err})
	}
}

func (p *Points) loadCatalog() {
	cats, err := p.catalog.Categories(p.ctx)
	p.post(func() { p.applyCatalog(cats, err) })
}

func (p *Points) applyCatalog(cats []model.Category, err error) {
	if err != nil {
		loadErr := &CatalogLoadError{Err: err}
		log.Warn().Err(err).Msg("Category catalog unavailable")
		p.emit(Event{Kind: CatalogLoadFailed, Err: loadErr})
		return
	}

	byID := make(map[int64]model.Category, len(cats))
	list := make([]model.Category, 0, len(cats))
	for _, c := range cats {
		if _, dup := byID[c.ID]; dup {
			log.Warn().Int64("category", c.ID).Msg("Duplicate category id ignored")
			continue
		}
		byID[c.ID] = c
		list = append(list, c)
	}
	slices.SortFunc(list, func(a, b model.Category) int { return cmp.Compare(a.ID, b.ID) })

	p.cats = byID
	p.catList = list

	log.Info().Int("categories", len(list)).Msg("Category catalog loaded")
	p.emit(Event{Kind: CatalogLoaded, Count: len(list)})
}

func (p *Points) acquireLocation() {
	fix, err := p.acquirer.Acquire(p.ctx)
	p.post(func() { p.applyFix(fix, err) })
}

func (p *Points) applyFix(fix geo.Coordinate, err error) {
	switch {
	case err == nil:
		if p.located {
			return
		}
		p.fix = fix
		p.located = true
		log.Info().
			Float64("lat", fix.Lat).
			Float64("long", fix.Long).
			Msg("Map center resolved")
		p.emit(Event{Kind: LocationResolved})

	case errors.Is(err, ErrPermissionDenied):
		if p.advised {
			return
		}
		p.advised = true
		p.emit(Event{Kind: PermissionDenied, Err: err})

	case errors.Is(err, ErrLocationUnavailable):
		p.emit(Event{Kind: LocationUnavailable, Err: err})
	}
}
