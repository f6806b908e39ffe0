// Package server serves a development copy of the collection point catalog over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/woozymasta/ecopoints/internal/config"
	"github.com/woozymasta/ecopoints/internal/model"
	"github.com/woozymasta/ecopoints/internal/thumbnail"

	"github.com/rs/zerolog/log"
)

const etagCap = 64

// HandleItems serves the category universe.
func (s *ServerContext) HandleItems(w http.ResponseWriter, r *http.Request) {
	base := s.publicURL(r)

	items := make([]model.Category, 0, len(s.Categories))
	for _, c := range s.Categories {
		items = append(items, model.Category{
			ID:       c.ID,
			Title:    c.Title,
			ImageURL: base + "/uploads/" + c.Image,
			Lat:      c.Lat,
			Long:     c.Long,
		})
	}

	writeJSON(w, struct {
		Items []model.Category `json:"serializedItems"`
	}{items})
}

// HandleLocations serves the points of a city that accept any of the requested items.
// Without items every point of the city is returned.
func (s *ServerContext) HandleLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city := strings.TrimSpace(q.Get("city"))
	state := strings.TrimSpace(q.Get("state"))

	items, err := parseItems(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	base := s.publicURL(r)
	points := make([]model.Point, 0)
	for _, loc := range s.Locations {
		if loc.Matches(city, state, items) {
			points = append(points, toPoint(loc, base))
		}
	}

	log.Debug().
		Str("city", city).
		Str("state", state).
		Ints64("items", items).
		Int("matches", len(points)).
		Msg("Locations query")

	writeJSON(w, points)
}

// HandleLocation serves the detail view of one point.
func (s *ServerContext) HandleLocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid location id", http.StatusBadRequest)
		return
	}

	loc, ok := s.locationByID[id]
	if !ok {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}

	detail := model.PointDetail{
		Location: model.PointContact{
			Name:     loc.Name,
			Image:    loc.Image,
			ImageURL: s.publicURL(r) + "/uploads/" + loc.Image,
			Email:    loc.Email,
			Whatsapp: loc.Whatsapp,
			City:     loc.City,
			State:    loc.State,
		},
	}
	titles := s.ItemTitles(loc)
	detail.Items = make([]model.PointItem, 0, len(titles))
	for _, title := range titles {
		detail.Items = append(detail.Items, model.PointItem{Title: title})
	}

	writeJSON(w, detail)
}

// HandleUpload serves images and icons from the uploads directory.
// SVG icons are minified on the way out.
func (s *ServerContext) HandleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.Config.Uploads, name)

	if strings.EqualFold(filepath.Ext(name), ".svg") {
		s.serveSVG(w, r, path)
		return
	}

	if !s.serveFile(w, r, path, "") {
		http.NotFound(w, r)
	}
}

// HandleThumbnail serves a WebP marker thumbnail of an uploaded image.
func (s *ServerContext) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	data, err := s.Thumbnails.Render(name)
	switch {
	case errors.Is(err, thumbnail.ErrInvalidName), errors.Is(err, os.ErrNotExist):
		http.NotFound(w, r)
		return
	case err != nil:
		log.Error().Err(err).Str("image", name).Msg("Failed to render thumbnail")
		http.Error(w, "cannot render thumbnail", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

func (s *ServerContext) serveSVG(w http.ResponseWriter, r *http.Request, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	etag := fileETag(info)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	out, err := s.Minifier.Bytes("image/svg+xml", raw)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("SVG minify failed, serving original")
		out = raw
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(out)
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	etag := fileETag(info)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}

// publicURL returns the prefix for image references, derived from the
// request when the dataset does not pin one.
func (s *ServerContext) publicURL(r *http.Request) string {
	if s.Config.PublicURL != "" {
		return strings.TrimRight(s.Config.PublicURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func toPoint(loc config.Location, base string) model.Point {
	return model.Point{
		ID:       loc.ID,
		Name:     loc.Name,
		Image:    loc.Image,
		ImageURL: base + "/uploads/" + loc.Image,
		Lat:      loc.Lat,
		Long:     loc.Long,
	}
}

// parseItems accepts "items=1,2", repeated "items=1&items=2" and "items[]=1".
func parseItems(q map[string][]string) ([]int64, error) {
	var items []int64
	for _, key := range []string{"items", "items[]"} {
		for _, raw := range q[key] {
			for _, part := range strings.Split(raw, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				id, err := strconv.ParseInt(part, 10, 64)
				if err != nil {
					return nil, errors.New("invalid item id: " + part)
				}
				if !slices.Contains(items, id) {
					items = append(items, id)
				}
			}
		}
	}
	return items, nil
}

func fileETag(info os.FileInfo) string {
	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	return string(buf)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}
