package screen

import (
	"github.com/woozymasta/ecopoints/internal/filter"
	"github.com/woozymasta/ecopoints/internal/geo"
	"github.com/woozymasta/ecopoints/internal/geolocation"
	"github.com/woozymasta/ecopoints/internal/model"
)

// Snapshot is a read-only copy of the screen state.
type Snapshot struct {
	Region     filter.Region
	Filter     filter.Filter
	Categories []model.Category
	Results    []model.Point
	Fix        geo.Coordinate
	Located    bool
	Location   geolocation.State
	// Generation is the latest issued query, AppliedGeneration the one displayed.
	Generation        uint64
	AppliedGeneration uint64
	Dropped           int
	Active            bool
}

// CategoryView is a selector entry.
type CategoryView struct {
	model.Category
	Selected bool
}

// Selector returns the category universe with the current selection marked.
func (s Snapshot) Selector() []CategoryView {
	views := make([]CategoryView, 0, len(s.Categories))
	for _, c := range s.Categories {
		views = append(views, CategoryView{Category: c, Selected: s.Filter.Selected(c.ID)})
	}
	return views
}

// MapFrame projects the snapshot into a renderable map. It returns false
// until the location is resolved so that no frame is ever centered at (0,0).
func (s Snapshot) MapFrame() (MapFrame, bool) {
	if !s.Located {
		return MapFrame{}, false
	}
	return newMapFrame(s.Fix, s.Results), true
}
