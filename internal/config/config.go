// Package config handles dataset loading for the development catalog server.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the root dataset file structure.
type Config struct {
	// PublicURL prefixes image references, e.g. "http://192.168.0.10:3333".
	PublicURL string `yaml:"public_url,omitempty"`
	// Uploads is the directory holding point images and category icons.
	Uploads    string     `yaml:"uploads,omitempty"`
	Categories []Category `yaml:"items"`
	Locations  []Location `yaml:"locations"`
}

// Category is a selectable material type.
type Category struct {
	Title string  `yaml:"title"`
	Image string  `yaml:"image"` // file name under Uploads
	ID    int64   `yaml:"id"`
	Lat   float64 `yaml:"lat,omitempty"`
	Long  float64 `yaml:"long,omitempty"`
}

// Location is a collection point and the categories it accepts.
type Location struct {
	Name     string  `yaml:"name"`
	Image    string  `yaml:"image"`
	Email    string  `yaml:"email,omitempty"`
	Whatsapp string  `yaml:"whatsapp,omitempty"`
	City     string  `yaml:"city"`
	State    string  `yaml:"state"` // two-letter code
	Items    []int64 `yaml:"items"`
	ID       int64   `yaml:"id"`
	Lat      float64 `yaml:"lat"`
	Long     float64 `yaml:"long"`
}

// Load reads and parses the YAML dataset file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes a YAML dataset.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	if cfg.Uploads == "" {
		cfg.Uploads = "uploads"
	}

	return &cfg, nil
}

// Matches reports whether the location lies in city/state and, when items is
// non-empty, accepts at least one of them. Region comparison ignores case.
func (l Location) Matches(city, state string, items []int64) bool {
	if !strings.EqualFold(l.City, city) || !strings.EqualFold(l.State, state) {
		return false
	}
	if len(items) == 0 {
		return true
	}
	for _, id := range items {
		if slices.Contains(l.Items, id) {
			return true
		}
	}
	return false
}
