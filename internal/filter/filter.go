// Package filter holds the search filter: a fixed region and a set of selected categories.
package filter

import (
	"slices"
	"strings"
)

// Region identifies the area a search is scoped to. It is supplied once at
// screen entry and never changes afterwards.
type Region struct {
	State string `json:"state"`
	City  string `json:"city"`
}

// String renders the region as "City/State".
func (r Region) String() string {
	return r.City + "/" + r.State
}

// Normalize trims whitespace and upper-cases the state code.
func (r Region) Normalize() Region {
	return Region{
		State: strings.ToUpper(strings.TrimSpace(r.State)),
		City:  strings.TrimSpace(r.City),
	}
}

// Filter is an immutable (region, selected category set) value.
// The zero value is a filter with an empty region and no selection.
type Filter struct {
	selected map[int64]struct{}
	Region   Region
}

// New returns a filter for region with an empty selection.
func New(region Region) Filter {
	return Filter{Region: region}
}

// Toggle returns a copy of f with the membership of id inverted.
// No other member is affected and f itself is left untouched.
func (f Filter) Toggle(id int64) Filter {
	next := make(map[int64]struct{}, len(f.selected)+1)
	for k := range f.selected {
		next[k] = struct{}{}
	}

	if _, ok := next[id]; ok {
		delete(next, id)
	} else {
		next[id] = struct{}{}
	}

	return Filter{Region: f.Region, selected: next}
}

// Selected reports whether id is a member of the selected set.
func (f Filter) Selected(id int64) bool {
	_, ok := f.selected[id]
	return ok
}

// Len returns the size of the selected set.
func (f Filter) Len() int {
	return len(f.selected)
}

// Items returns the selected ids in ascending order. The result is empty,
// never nil, when nothing is selected.
func (f Filter) Items() []int64 {
	items := make([]int64, 0, len(f.selected))
	for id := range f.selected {
		items = append(items, id)
	}
	slices.Sort(items)
	return items
}

// Equal reports whether f and o have the same region and selected set.
func (f Filter) Equal(o Filter) bool {
	if f.Region != o.Region || len(f.selected) != len(o.selected) {
		return false
	}
	for id := range f.selected {
		if _, ok := o.selected[id]; !ok {
			return false
		}
	}
	return true
}
