// Package catalog is an HTTP client for the collection point catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/ecopoints/internal/model"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 10 * time.Second

// PointsQuery is the filter sent with a points request.
// Empty Items means no category constraint.
type PointsQuery struct {
	City  string
	State string
	Items []int64
}

// Values encodes the query as URL parameters. Items are sent comma-joined
// and omitted entirely when empty.
func (q PointsQuery) Values() url.Values {
	v := url.Values{}
	v.Set("city", q.City)
	v.Set("state", q.State)

	if len(q.Items) > 0 {
		ids := make([]string, 0, len(q.Items))
		for _, id := range q.Items {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		v.Set("items", strings.Join(ids, ","))
	}

	return v
}

// StatusError is returned when the service answers with a non-200 status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog %s: status %d", e.URL, e.StatusCode)
}

// Client talks to the catalog service rooted at BaseURL.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

// New returns a client for baseURL. A nil httpClient gets a default one with a 10s timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalog url %q: unsupported scheme", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{http: httpClient, baseURL: u}, nil
}

// Categories fetches the full list of selectable categories.
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var body struct {
		Items []model.Category `json:"serializedItems"`
	}
	if err := c.get(ctx, "items", nil, &body); err != nil {
		return nil, err
	}

	return body.Items, nil
}

// Points fetches the points matching q.
func (c *Client) Points(ctx context.Context, q PointsQuery) ([]model.Point, error) {
	var points []model.Point
	if err := c.get(ctx, "locations", q.Values(), &points); err != nil {
		return nil, err
	}
	if points == nil {
		points = []model.Point{}
	}

	return points, nil
}

// Point fetches the detail view of a single point.
func (c *Client) Point(ctx context.Context, id int64) (*model.PointDetail, error) {
	var detail model.PointDetail
	if err := c.get(ctx, "locations/"+strconv.FormatInt(id, 10), nil, &detail); err != nil {
		return nil, err
	}

	return &detail, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	target := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	log.Debug().
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Catalog request finished")

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}
