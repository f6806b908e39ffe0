package screen

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/ecopoints/internal/catalog"
	"github.com/woozymasta/ecopoints/internal/filter"
	"github.com/woozymasta/ecopoints/internal/geo"
	"github.com/woozymasta/ecopoints/internal/geolocation"
	"github.com/woozymasta/ecopoints/internal/model"
	"github.com/woozymasta/ecopoints/internal/navigation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

var (
	saoPaulo = filter.Region{State: "SP", City: "São Paulo"}
	center   = geo.Coordinate{Lat: -23.5505, Long: -46.6333}

	pointOne = model.Point{ID: 1, Name: "Eco Center", Lat: -23.55, Long: -46.63}
	pointTwo = model.Point{ID: 2, Name: "Recycle Hub", Lat: -23.56, Long: -46.64}

	categories = []model.Category{
		{ID: 7, Title: "Batteries"},
		{ID: 3, Title: "Paper"},
	}
)

type pendingQuery struct {
	reply chan queryReply
	query catalog.PointsQuery
}

type queryReply struct {
	err    error
	points []model.Point
}

func (p pendingQuery) respond(points []model.Point, err error) {
	p.reply <- queryReply{points: points, err: err}
}

type fakeCatalog struct {
	catErr     error
	answer     func(q catalog.PointsQuery) ([]model.Point, error)
	pending    chan pendingQuery
	categories []model.Category
	queries    []catalog.PointsQuery
	mu         sync.Mutex
}

func (f *fakeCatalog) Categories(ctx context.Context) ([]model.Category, error) {
	return f.categories, f.catErr
}

func (f *fakeCatalog) Points(ctx context.Context, q catalog.PointsQuery) ([]model.Point, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.pending == nil {
		return f.answer(q)
	}

	pq := pendingQuery{query: q, reply: make(chan queryReply, 1)}
	select {
	case f.pending <- pq:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-pq.reply:
		return r.points, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeCatalog) Queries() []catalog.PointsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

// byItems answers with both points for an unfiltered query and only point one
// when category 7 is selected.
func byItems(q catalog.PointsQuery) ([]model.Point, error) {
	if slices.Contains(q.Items, 7) {
		return []model.Point{pointOne}, nil
	}
	return []model.Point{pointOne, pointTwo}, nil
}

type countingLocator struct {
	geolocation.Static
	prompts atomic.Int32
}

func (l *countingLocator) RequestPermission(ctx context.Context) (bool, error) {
	l.prompts.Add(1)
	return l.Static.RequestPermission(ctx)
}

type eventLog struct {
	events []Event
	mu     sync.Mutex
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) find(kind EventKind, gen uint64) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Kind == kind && (gen == 0 || ev.Generation == gen) {
			return ev, true
		}
	}
	return Event{}, false
}

func (l *eventLog) wait(t *testing.T, kind EventKind, gen uint64) Event {
	t.Helper()
	var ev Event
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = l.find(kind, gen)
		return ok
	}, waitFor, time.Millisecond, "waiting for %s (generation %d)", kind, gen)
	return ev
}

type harness struct {
	screen  *Points
	catalog *fakeCatalog
	nav     *navigation.Recorder
	events  *eventLog
	locator *countingLocator
}

func newHarness(t *testing.T, cat *fakeCatalog, loc geolocation.Static) *harness {
	t.Helper()
	h := &harness{
		catalog: cat,
		nav:     &navigation.Recorder{},
		events:  &eventLog{},
		locator: &countingLocator{Static: loc},
	}
	h.screen = NewPoints(saoPaulo, cat, h.locator, h.nav, WithListener(h.events.listen))
	require.NoError(t, h.screen.Activate(context.Background()))
	t.Cleanup(h.screen.Deactivate)
	return h
}

func markerIDs(t *testing.T, s *Points) []int64 {
	t.Helper()
	frame, ok := s.MapFrame()
	require.True(t, ok, "map should be rendered")
	ids := make([]int64, 0, len(frame.Markers))
	for _, m := range frame.Markers {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestRegionQueryRendersMarkers(t *testing.T) {
	h := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Fix: center})

	h.events.wait(t, ResultsReplaced, 1)
	h.events.wait(t, LocationResolved, 0)

	queries := h.catalog.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, catalog.PointsQuery{City: "São Paulo", State: "SP", Items: []int64{}}, queries[0])

	assert.Equal(t, []int64{1, 2}, markerIDs(t, h.screen))

	frame, _ := h.screen.MapFrame()
	assert.Equal(t, center, frame.Center)
	assert.Equal(t, regionDelta, frame.LatitudeDelta)
}

func TestToggleRequeriesWithCategory(t *testing.T) {
	h := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Fix: center})
	h.events.wait(t, CatalogLoaded, 0)
	h.events.wait(t, ResultsReplaced, 1)
	h.events.wait(t, LocationResolved, 0)

	require.NoError(t, h.screen.ToggleCategory(7))
	h.events.wait(t, ResultsReplaced, 2)

	queries := h.catalog.Queries()
	require.Len(t, queries, 2)
	assert.Equal(t, []int64{7}, queries[1].Items)

	assert.Equal(t, []int64{1}, markerIDs(t, h.screen))
	assert.True(t, h.screen.Snapshot().Filter.Selected(7))
}

func TestStaleResponseNeverOverwritesNewer(t *testing.T) {
	cat := &fakeCatalog{categories: categories, pending: make(chan pendingQuery)}
	h := newHarness(t, cat, geolocation.Static{Fix: center})
	h.events.wait(t, CatalogLoaded, 0)

	g1 := <-cat.pending
	require.NoError(t, h.screen.ToggleCategory(7))
	g2 := <-cat.pending
	assert.Equal(t, []int64{7}, g2.query.Items)

	g2.respond([]model.Point{pointOne}, nil)
	h.events.wait(t, ResultsReplaced, 2)

	g1.respond([]model.Point{pointOne, pointTwo}, nil)
	h.events.wait(t, StaleDropped, 1)

	s := h.screen.Snapshot()
	assert.Equal(t, []model.Point{pointOne}, s.Results)
	assert.Equal(t, uint64(2), s.AppliedGeneration)
	assert.Equal(t, 1, s.Dropped)
	assert.Equal(t, 0, h.events.count(QueryFailed))
}

func TestStaleResponseArrivingFirstIsDropped(t *testing.T) {
	cat := &fakeCatalog{categories: categories, pending: make(chan pendingQuery)}
	h := newHarness(t, cat, geolocation.Static{Fix: center})
	h.events.wait(t, CatalogLoaded, 0)

	g1 := <-cat.pending
	require.NoError(t, h.screen.ToggleCategory(7))
	g2 := <-cat.pending

	g1.respond([]model.Point{pointOne, pointTwo}, nil)
	h.events.wait(t, StaleDropped, 1)
	assert.Empty(t, h.screen.Snapshot().Results)

	g2.respond([]model.Point{pointOne}, nil)
	h.events.wait(t, ResultsReplaced, 2)
	assert.Equal(t, []model.Point{pointOne}, h.screen.Snapshot().Results)
}

func TestPermissionDeniedAdvisesOnce(t *testing.T) {
	h := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Deny: true})

	ev := h.events.wait(t, PermissionDenied, 0)
	assert.ErrorIs(t, ev.Err, ErrPermissionDenied)
	h.events.wait(t, ResultsReplaced, 1)

	for n := 0; n < 5; n++ {
		_, ok := h.screen.MapFrame()
		assert.False(t, ok)
	}

	s := h.screen.Snapshot()
	assert.False(t, s.Located)
	assert.Equal(t, geolocation.PermissionDenied, s.Location)
	assert.Len(t, s.Results, 2, "region query runs regardless of location")

	h.screen.Deactivate()
	assert.Equal(t, 1, h.events.count(PermissionDenied))
	assert.Equal(t, 0, h.events.count(LocationResolved))
	assert.Equal(t, int32(1), h.locator.prompts.Load())

	assert.ErrorIs(t, h.screen.PressMarker(1), ErrInactive)
}

func TestPressMarkerNavigatesOnce(t *testing.T) {
	h := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Fix: center})
	h.events.wait(t, ResultsReplaced, 1)
	h.events.wait(t, LocationResolved, 0)
	before := h.screen.Snapshot()

	require.NoError(t, h.screen.PressMarker(1))

	assert.Equal(t, []navigation.Request{{
		Screen: navigation.ScreenDetail,
		Params: map[string]any{navigation.ParamPointID: int64(1)},
	}}, h.nav.Requests())

	after := h.screen.Snapshot()
	assert.Equal(t, before.Results, after.Results)
	assert.True(t, before.Filter.Equal(after.Filter))
	assert.Equal(t, before.Generation, after.Generation)
}

func TestPressMarkerRejections(t *testing.T) {
	h := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Fix: center})
	h.events.wait(t, ResultsReplaced, 1)
	h.events.wait(t, LocationResolved, 0)

	assert.ErrorIs(t, h.screen.PressMarker(99), ErrUnknownMarker)
	assert.Empty(t, h.nav.Requests())

	denied := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Deny: true})
	denied.events.wait(t, ResultsReplaced, 1)
	denied.events.wait(t, PermissionDenied, 0)

	assert.ErrorIs(t, denied.screen.PressMarker(1), ErrMapInactive)
	assert.Empty(t, denied.nav.Requests())
}

func TestGoBack(t *testing.T) {
	h := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Fix: center})
	h.screen.GoBack()
	assert.Equal(t, []navigation.Request{{Back: true}}, h.nav.Requests())
}

func TestCatalogFailureKeepsScreenUsable(t *testing.T) {
	boom := errors.New("catalog down")
	h := newHarness(t, &fakeCatalog{catErr: boom, answer: byItems}, geolocation.Static{Fix: center})

	ev := h.events.wait(t, CatalogLoadFailed, 0)
	var loadErr *CatalogLoadError
	require.ErrorAs(t, ev.Err, &loadErr)
	assert.ErrorIs(t, ev.Err, boom)

	h.events.wait(t, ResultsReplaced, 1)
	s := h.screen.Snapshot()
	assert.Empty(t, s.Categories)
	assert.Len(t, s.Results, 2)

	assert.ErrorIs(t, h.screen.ToggleCategory(7), ErrUnknownCategory)
	assert.Equal(t, uint64(1), h.screen.Snapshot().Generation)
}

func TestQueryFailureKeepsResults(t *testing.T) {
	boom := errors.New("timeout")
	answer := func(q catalog.PointsQuery) ([]model.Point, error) {
		if slices.Contains(q.Items, 3) {
			return nil, boom
		}
		return byItems(q)
	}
	h := newHarness(t, &fakeCatalog{categories: categories, answer: answer}, geolocation.Static{Fix: center})
	h.events.wait(t, CatalogLoaded, 0)
	h.events.wait(t, ResultsReplaced, 1)

	require.NoError(t, h.screen.ToggleCategory(3))
	ev := h.events.wait(t, QueryFailed, 2)

	var qe *QueryError
	require.ErrorAs(t, ev.Err, &qe)
	assert.Equal(t, []int64{3}, qe.Items)
	assert.ErrorIs(t, ev.Err, boom)

	s := h.screen.Snapshot()
	assert.Equal(t, []model.Point{pointOne, pointTwo}, s.Results)
	assert.Equal(t, uint64(1), s.AppliedGeneration)
	assert.Equal(t, uint64(2), s.Generation)
}

func TestToggleBackReturnsSameResults(t *testing.T) {
	h := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Fix: center})
	h.events.wait(t, CatalogLoaded, 0)
	h.events.wait(t, ResultsReplaced, 1)
	first := h.screen.Snapshot().Results

	require.NoError(t, h.screen.ToggleCategory(7))
	require.NoError(t, h.screen.ToggleCategory(7))
	h.events.wait(t, ResultsReplaced, 3)

	s := h.screen.Snapshot()
	assert.Equal(t, first, s.Results)
	assert.Equal(t, 0, s.Filter.Len())

	require.Eventually(t, func() bool { return len(h.catalog.Queries()) == 3 }, waitFor, time.Millisecond)
	unfiltered := 0
	for _, q := range h.catalog.Queries() {
		if len(q.Items) == 0 {
			unfiltered++
			assert.Equal(t, catalog.PointsQuery{City: "São Paulo", State: "SP", Items: []int64{}}, q)
		}
	}
	assert.Equal(t, 2, unfiltered)
}

func TestSelectorMarksSelection(t *testing.T) {
	h := newHarness(t, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Fix: center})
	h.events.wait(t, CatalogLoaded, 0)

	require.NoError(t, h.screen.ToggleCategory(3))

	sel := h.screen.Snapshot().Selector()
	require.Len(t, sel, 2)
	assert.Equal(t, int64(3), sel[0].ID)
	assert.True(t, sel[0].Selected)
	assert.Equal(t, int64(7), sel[1].ID)
	assert.False(t, sel[1].Selected)
}

func TestDeactivateStopsApplyingResults(t *testing.T) {
	cat := &fakeCatalog{categories: categories, pending: make(chan pendingQuery)}
	h := newHarness(t, cat, geolocation.Static{Fix: center})

	g1 := <-cat.pending
	h.screen.Deactivate()
	g1.respond([]model.Point{pointOne}, nil)

	s := h.screen.Snapshot()
	assert.False(t, s.Active)
	assert.Empty(t, s.Results)
	assert.Equal(t, 0, h.events.count(ResultsReplaced))

	assert.ErrorIs(t, h.screen.ToggleCategory(7), ErrInactive)
	assert.ErrorIs(t, h.screen.Activate(context.Background()), ErrAlreadyActivated)

	select {
	case <-h.screen.Done():
	default:
		t.Fatal("screen should be done")
	}
}

func TestContextCancelDeactivates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewPoints(saoPaulo, &fakeCatalog{categories: categories, answer: byItems}, geolocation.Static{Fix: center}, &navigation.Recorder{})
	require.NoError(t, s.Activate(ctx))

	cancel()
	select {
	case <-s.Done():
	case <-time.After(waitFor):
		t.Fatal("screen did not stop")
	}
	s.Deactivate()
}

func TestCommandsBeforeActivate(t *testing.T) {
	s := NewPoints(saoPaulo, &fakeCatalog{answer: byItems}, geolocation.Static{}, &navigation.Recorder{})

	assert.ErrorIs(t, s.ToggleCategory(1), ErrInactive)
	snap := s.Snapshot()
	assert.False(t, snap.Active)
	assert.Equal(t, geolocation.Idle, snap.Location)

	s.Deactivate()
	s.Deactivate()
}

func TestMapFrameGeoJSON(t *testing.T) {
	frame := newMapFrame(center, []model.Point{pointOne, pointTwo, pointOne})
	require.Len(t, frame.Markers, 2, "duplicate ids collapse to one marker")

	m, ok := frame.Marker(2)
	require.True(t, ok)
	assert.Equal(t, "Recycle Hub", m.Title)
	assert.Greater(t, m.DistanceKm, 0.0)

	fc := frame.GeoJSON()
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "center", fc.Features[0].Properties["type"])
	assert.Equal(t, int64(1), fc.Features[1].Properties["id"])
	assert.Equal(t, []float64{pointOne.Long, pointOne.Lat}, fc.Features[1].Geometry.Coordinates)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "stale_dropped", StaleDropped.String())
	assert.Equal(t, "event(99)", EventKind(99).String())
}
