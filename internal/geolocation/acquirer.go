// Package geolocation acquires a single device location fix behind a permission gate.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/woozymasta/ecopoints/internal/geo"

	"github.com/rs/zerolog/log"
)

var (
	// ErrPermissionDenied is returned when the user refuses location access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrLocationUnavailable is returned when permission was granted but no fix could be resolved.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// Locator is the device location capability.
type Locator interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentFix(ctx context.Context) (geo.Coordinate, error)
}

// State is a step of the acquisition state machine.
type State int

// Idle → PermissionRequested → {PermissionDenied | PermissionGranted} → {Unresolved | Resolved}
const (
	Idle State = iota
	PermissionRequested
	PermissionDenied
	PermissionGranted
	Unresolved
	Resolved
)

var stateNames = [...]string{
	Idle:                "idle",
	PermissionRequested: "permission_requested",
	PermissionDenied:    "permission_denied",
	PermissionGranted:   "permission_granted",
	Unresolved:          "unresolved",
	Resolved:            "resolved",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == PermissionDenied || s == Unresolved || s == Resolved
}

// Acquirer runs the permission gate and the one-shot fix at most once.
// Later Acquire calls return the recorded outcome without prompting again.
type Acquirer struct {
	locator Locator
	done    chan struct{}
	err     error
	fix     geo.Coordinate
	state   State
	mu      sync.Mutex
}

// NewAcquirer returns an idle acquirer backed by locator.
func NewAcquirer(locator Locator) *Acquirer {
	return &Acquirer{locator: locator, done: make(chan struct{})}
}

// State returns the current state.
func (a *Acquirer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Fix returns the resolved coordinate and true once the state is Resolved.
func (a *Acquirer) Fix() (geo.Coordinate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fix, a.state == Resolved
}

// Acquire runs the state machine on first call and blocks until it reaches a
// terminal state. Concurrent and later callers share that single outcome.
// A denied permission yields ErrPermissionDenied; a failed or degenerate fix
// yields ErrLocationUnavailable. Both are terminal for the acquirer's lifetime.
func (a *Acquirer) Acquire(ctx context.Context) (geo.Coordinate, error) {
	a.mu.Lock()
	if a.state != Idle {
		a.mu.Unlock()
		return a.wait(ctx)
	}
	a.state = PermissionRequested
	a.mu.Unlock()

	log.Debug().Msg("Requesting location permission")

	granted, err := a.locator.RequestPermission(ctx)
	if err != nil || !granted {
		cause := ErrPermissionDenied
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		a.finish(PermissionDenied, geo.Coordinate{}, cause)
		return a.wait(ctx)
	}

	a.transition(PermissionGranted)

	fix, err := a.locator.CurrentFix(ctx)
	switch {
	case err != nil:
		a.finish(Unresolved, geo.Coordinate{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err))
	case fix.IsZero() || !fix.Valid():
		a.finish(Unresolved, geo.Coordinate{}, fmt.Errorf("%w: degenerate fix %v", ErrLocationUnavailable, fix))
	default:
		a.finish(Resolved, fix, nil)
	}

	return a.wait(ctx)
}

func (a *Acquirer) transition(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Acquirer) finish(s State, fix geo.Coordinate, err error) {
	a.mu.Lock()
	a.state = s
	a.fix = fix
	a.err = err
	a.mu.Unlock()
	close(a.done)

	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("state", s.String()).
		Float64("lat", fix.Lat).
		Float64("long", fix.Long).
		Msg("Location acquisition finished")
}

func (a *Acquirer) wait(ctx context.Context) (geo.Coordinate, error) {
	select {
	case <-a.done:
	case <-ctx.Done():
		return geo.Coordinate{}, ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fix, a.err
}
