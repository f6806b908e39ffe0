package server

import (
	"cmp"
	"net/http"
	"slices"

	"github.com/woozymasta/ecopoints/internal/config"
	"github.com/woozymasta/ecopoints/internal/geo"
	"github.com/woozymasta/ecopoints/internal/thumbnail"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config     *config.Config
	Categories []config.Category
	Locations  []config.Location
	Thumbnails *thumbnail.Renderer
	Minifier   *minify.M

	categoryByID map[int64]config.Category
	locationByID map[int64]config.Location
}

// NewServerContext initializes the context and validates the dataset.
// It drops duplicate ids, locations with invalid coordinates and item
// references to unknown categories.
func NewServerContext(cfg *config.Config) *ServerContext {
	log.Info().
		Int("config_items_count", len(cfg.Categories)).
		Int("config_locations_count", len(cfg.Locations)).
		Msg("Initializing server context")

	categoryByID := make(map[int64]config.Category, len(cfg.Categories))
	categories := make([]config.Category, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		if _, dup := categoryByID[c.ID]; dup {
			log.Warn().Int64("item", c.ID).Msg("Skipping item: duplicate id")
			continue
		}
		categoryByID[c.ID] = c
		categories = append(categories, c)
	}

	locationByID := make(map[int64]config.Location, len(cfg.Locations))
	locations := make([]config.Location, 0, len(cfg.Locations))
	for _, loc := range cfg.Locations {
		if _, dup := locationByID[loc.ID]; dup {
			log.Warn().Int64("location", loc.ID).Msg("Skipping location: duplicate id")
			continue
		}

		if pos := (geo.Coordinate{Lat: loc.Lat, Long: loc.Long}); !pos.Valid() || pos.IsZero() {
			log.Warn().
				Int64("location", loc.ID).
				Float64("lat", loc.Lat).
				Float64("long", loc.Long).
				Msg("Skipping location: invalid coordinates")
			continue
		}

		items := make([]int64, 0, len(loc.Items))
		for _, id := range loc.Items {
			if _, ok := categoryByID[id]; !ok {
				log.Trace().
					Int64("location", loc.ID).
					Int64("item", id).
					Msg("Dropping unknown item reference")
				continue
			}
			if !slices.Contains(items, id) {
				items = append(items, id)
			}
		}
		loc.Items = items

		log.Debug().
			Int64("location", loc.ID).
			Str("city", loc.City).
			Str("state", loc.State).
			Int("items", len(items)).
			Msg("Location validated and added to context")

		locationByID[loc.ID] = loc
		locations = append(locations, loc)
	}

	slices.SortFunc(categories, func(a, b config.Category) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(locations, func(a, b config.Location) int { return cmp.Compare(a.ID, b.ID) })

	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)

	log.Info().
		Int("valid_items_count", len(categories)).
		Int("valid_locations_count", len(locations)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:       cfg,
		Categories:   categories,
		Locations:    locations,
		Thumbnails:   thumbnail.New(cfg.Uploads),
		Minifier:     m,
		categoryByID: categoryByID,
		locationByID: locationByID,
	}
}

// Routes registers all catalog handlers on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items", s.HandleItems)
	mux.HandleFunc("GET /locations", s.HandleLocations)
	mux.HandleFunc("GET /locations/{id}", s.HandleLocation)
	mux.HandleFunc("GET /uploads/{name}", s.HandleUpload)
	mux.HandleFunc("GET /thumbnails/{name}", s.HandleThumbnail)
	return mux
}

// ItemTitles returns the titles of the categories loc accepts, in dataset order.
func (s *ServerContext) ItemTitles(loc config.Location) []string {
	titles := make([]string, 0, len(loc.Items))
	for _, id := range loc.Items {
		if c, ok := s.categoryByID[id]; ok {
			titles = append(titles, c.Title)
		}
	}
	return titles
}
