// Package navigation describes screen navigation requests emitted by the search screen.
package navigation

import "sync"

// Screen names understood by navigators.
const (
	ScreenDetail = "Detail"
	ScreenPoints = "Points"
)

// ParamPointID is the Detail screen parameter carrying the pressed point's id.
const ParamPointID = "pointId"

// Navigator is the app navigation collaborator. Implementations must not block:
// requests are fire-and-forget.
type Navigator interface {
	GoBack()
	Navigate(screen string, params map[string]any)
}

// Request is a recorded navigation request. Back is set for GoBack calls.
type Request struct {
	Params map[string]any
	Screen string
	Back   bool
}

// Recorder is a Navigator that keeps every request in order.
type Recorder struct {
	requests []Request
	mu       sync.Mutex
}

// GoBack records a back request.
func (r *Recorder) GoBack() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, Request{Back: true})
}

// Navigate records a forward request.
func (r *Recorder) Navigate(screen string, params map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, Request{Screen: screen, Params: params})
}

// Requests returns a copy of the recorded requests.
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// Func adapts plain functions to a Navigator. Nil fields are no-ops.
type Func struct {
	Back    func()
	Forward func(screen string, params map[string]any)
}

// GoBack calls Back if set.
func (f Func) GoBack() {
	if f.Back != nil {
		f.Back()
	}
}

// Navigate calls Forward if set.
func (f Func) Navigate(screen string, params map[string]any) {
	if f.Forward != nil {
		f.Forward(screen, params)
	}
}
