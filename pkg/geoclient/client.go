// Package geoclient is a small HTTP client for the agro-geo GeoJSON API.
package geoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/agro-geo/internal/mapview"
)

// API paths served by the backend.
const (
	PathParcelas    = mapview.EndpointParcelas
	PathActividades = mapview.EndpointActividades
	PathEstilos     = "/geo/api/estilos"
)

var _ mapview.Fetcher = (*Client)(nil)

// StatusError is returned when the backend answers with a non-200 status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Client fetches feature collections from an agro-geo backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout on the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// New creates a client for the backend at baseURL (e.g. "http://localhost:8086").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parcelas fetches the parcel FeatureCollection.
func (c *Client) Parcelas(ctx context.Context) (*geojson.FeatureCollection, error) {
	return c.collection(ctx, PathParcelas)
}

// Actividades fetches the activity FeatureCollection.
func (c *Client) Actividades(ctx context.Context) (*geojson.FeatureCollection, error) {
	return c.collection(ctx, PathActividades)
}

// Parcela fetches a single parcel feature.
func (c *Client) Parcela(ctx context.Context, id int) (*geojson.Feature, error) {
	return c.feature(ctx, fmt.Sprintf("%s/%d", PathParcelas, id))
}

// Actividad fetches a single activity feature.
func (c *Client) Actividad(ctx context.Context, id int) (*geojson.Feature, error) {
	return c.feature(ctx, fmt.Sprintf("%s/%d", PathActividades, id))
}

// Styles fetches the activity style table.
func (c *Client) Styles(ctx context.Context) (mapview.StyleTable, error) {
	var table mapview.StyleTable
	if err := c.GetJSON(ctx, PathEstilos, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// GetJSON decodes the JSON body at path into v.
func (c *Client) GetJSON(ctx context.Context, path string, v any) error {
	data, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) collection(ctx context.Context, path string) (*geojson.FeatureCollection, error) {
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson from %s: %w", path, err)
	}
	return fc, nil
}

func (c *Client) feature(ctx context.Context, path string) (*geojson.Feature, error) {
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	f, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson from %s: %w", path, err)
	}
	return f, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
