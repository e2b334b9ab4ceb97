// Package routing implements ports.RoutingProvider against a
// GraphHopper-compatible directions API.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// Client requests routes over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	profile string
	http    *http.Client
}

// New creates a routing client. profile defaults to "car".
func New(baseURL, apiKey, profile string, timeout time.Duration) *Client {
	if profile == "" {
		profile = "car"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		profile: profile,
		http:    &http.Client{Timeout: timeout},
	}
}

// routeResponse mirrors the provider's wire format. Instruction points
// come in several shapes across provider versions; anchorField absorbs
// them all.
type routeResponse struct {
	Paths []struct {
		Distance float64 `json:"distance"`
		Time     int64   `json:"time"` // milliseconds
		Points   struct {
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"points"`
		Instructions []struct {
			Text     string          `json:"text"`
			Distance float64         `json:"distance"`
			Time     int64           `json:"time"` // milliseconds
			Interval []int           `json:"interval,omitempty"`
			Location json.RawMessage `json:"location,omitempty"`
		} `json:"instructions"`
	} `json:"paths"`
	Message string `json:"message,omitempty"`
}

// Route requests a route and returns the first candidate path,
// normalized: geometry in lat/lon order and every instruction carrying
// a resolved anchor. Instructions whose anchor cannot be resolved are
// dropped.
func (c *Client) Route(ctx context.Context, origin, destination domain.GeoPoint) (*domain.RouteSummary, error) {
	q := url.Values{}
	q.Add("point", fmt.Sprintf("%f,%f", origin.Lat, origin.Lon))
	q.Add("point", fmt.Sprintf("%f,%f", destination.Lat, destination.Lon))
	q.Set("profile", c.profile)
	q.Set("points_encoded", "false")
	q.Set("instructions", "true")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/route?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRoutingUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrRoutingUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrRoutingUnavailable, resp.StatusCode)
	default:
		// 4xx means the provider understood us and found nothing usable.
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrNoPath, resp.StatusCode, firstLine(body))
	}

	var parsed routeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrRoutingUnavailable, err)
	}
	if len(parsed.Paths) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoPath, parsed.Message)
	}

	// First path only; alternatives are ignored.
	path := parsed.Paths[0]

	geometry := domain.GeoLineString{Coordinates: make([]domain.GeoPoint, 0, len(path.Points.Coordinates))}
	for _, c := range path.Points.Coordinates {
		if len(c) < 2 {
			continue
		}
		geometry.Coordinates = append(geometry.Coordinates, domain.GeoPoint{Lat: c[1], Lon: c[0]})
	}
	if len(geometry.Coordinates) == 0 {
		return nil, fmt.Errorf("%w: empty geometry", domain.ErrNoPath)
	}

	summary := &domain.RouteSummary{
		DistanceMeters:  path.Distance,
		DurationSeconds: float64(path.Time) / 1000,
		Geometry:        geometry,
	}
	for _, in := range path.Instructions {
		anchor := resolveAnchor(in.Location, in.Interval, geometry.Coordinates)
		if anchor == nil {
			continue
		}
		summary.Instructions = append(summary.Instructions, domain.RouteInstruction{
			Text:            in.Text,
			DistanceMeters:  in.Distance,
			DurationSeconds: float64(in.Time) / 1000,
			Anchor:          anchor,
		})
	}
	return summary, nil
}

// resolveAnchor extracts an instruction anchor from whichever shape the
// provider used: a [lon, lat] pair, a {lat, lng} object, a nested
// [[lon, lat], ...] list, or the instruction's geometry interval.
func resolveAnchor(raw json.RawMessage, interval []int, geometry []domain.GeoPoint) *domain.GeoPoint {
	if len(raw) > 0 {
		var pair []float64
		if err := json.Unmarshal(raw, &pair); err == nil && len(pair) >= 2 {
			return &domain.GeoPoint{Lat: pair[1], Lon: pair[0]}
		}
		var obj struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && (obj.Lat != 0 || obj.Lng != 0) {
			return &domain.GeoPoint{Lat: obj.Lat, Lon: obj.Lng}
		}
		var nested [][]float64
		if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 && len(nested[0]) >= 2 {
			return &domain.GeoPoint{Lat: nested[0][1], Lon: nested[0][0]}
		}
	}
	if len(interval) > 0 && interval[0] >= 0 && interval[0] < len(geometry) {
		p := geometry[interval[0]]
		return &p
	}
	return nil
}

func firstLine(body []byte) string {
	for i, b := range body {
		if b == '\n' {
			return string(body[:i])
		}
	}
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
