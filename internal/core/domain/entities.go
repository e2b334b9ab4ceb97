package domain

import (
	"time"
)

// SpotStatus is the lifecycle state of a public spot.
type SpotStatus string

const (
	SpotActive    SpotStatus = "active"
	SpotConfirmed SpotStatus = "confirmed"
	SpotNotFound  SpotStatus = "not_found"
	SpotExpired   SpotStatus = "expired"
)

// Valid reports whether s is a known status value.
func (s SpotStatus) Valid() bool {
	switch s {
	case SpotActive, SpotConfirmed, SpotNotFound, SpotExpired:
		return true
	}
	return false
}

// PublicSpot is a time-limited, user-reported parking space.
type PublicSpot struct {
	ID             string     `json:"id"`
	Location       GeoPoint   `json:"location"`
	DisplayName    string     `json:"display_name"`
	AvailableSpots int        `json:"available_spots"`
	TotalSpots     int        `json:"total_spots"`
	ExpiresAt      time.Time  `json:"expires_at"`
	Status         SpotStatus `json:"status"`
	OwnerUserID    string     `json:"owner_user_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

// PrivateParking is an owner-managed lot with persistent capacity and
// operating hours. Opening and closing times are "HH:MM" local time.
type PrivateParking struct {
	ID             string    `json:"id"`
	ParkingID      string    `json:"parking_id"`
	Location       GeoPoint  `json:"location"`
	DisplayName    string    `json:"display_name"`
	AvailableSpots int       `json:"available_spots"`
	OpeningTime    string    `json:"opening_time"`
	ClosingTime    string    `json:"closing_time"`
	Phone          string    `json:"phone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsOpen reports whether the lot is open at the given instant.
// A lot with unparseable hours is treated as always open.
func (p PrivateParking) IsOpen(at time.Time) bool {
	open, err1 := time.Parse("15:04", p.OpeningTime)
	close, err2 := time.Parse("15:04", p.ClosingTime)
	if err1 != nil || err2 != nil {
		return true
	}

	minutes := at.Hour()*60 + at.Minute()
	openMin := open.Hour()*60 + open.Minute()
	closeMin := close.Hour()*60 + close.Minute()

	if openMin == closeMin {
		return true // 24h
	}
	if openMin < closeMin {
		return minutes >= openMin && minutes < closeMin
	}
	// Overnight schedule, e.g. 22:00-06:00
	return minutes >= openMin || minutes < closeMin
}

// MarkerKind distinguishes the two spot variants on the map.
type MarkerKind string

const (
	MarkerPublic  MarkerKind = "public"
	MarkerPrivate MarkerKind = "private"
)

// SpotMarker is the map-facing projection of a spot, public or private.
type SpotMarker struct {
	Kind           MarkerKind `json:"kind"`
	ID             string     `json:"id"`
	Location       GeoPoint   `json:"location"`
	DisplayName    string     `json:"display_name"`
	AvailableSpots int        `json:"available_spots"`
	TotalSpots     int        `json:"total_spots,omitempty"`
	IsOpen         bool       `json:"is_open,omitempty"`
}

// Key returns a stable reconciliation key for the marker. The ID is
// preferred; markers without one fall back to kind plus position.
func (m SpotMarker) Key() string {
	if m.ID != "" {
		return string(m.Kind) + ":" + m.ID
	}
	return string(m.Kind) + "@" + m.Location.String()
}

// String formats a point with enough precision for a stable key (~1 cm).
func (p GeoPoint) String() string {
	return formatCoord(p.Lat) + "," + formatCoord(p.Lon)
}

// LivePosition is an accepted reading from the geolocation source.
type LivePosition struct {
	Point          GeoPoint  `json:"point"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Time           time.Time `json:"time"`
}

// RouteInstruction is a single turn-by-turn maneuver. Anchor is nil only
// transiently inside the routing adapter; instructions that reach the core
// always carry one.
type RouteInstruction struct {
	Text            string    `json:"text"`
	DistanceMeters  float64   `json:"distance_meters"`
	DurationSeconds float64   `json:"duration_seconds"`
	Anchor          *GeoPoint `json:"anchor,omitempty"`
}

// RouteSummary is the parsed result of one routing request: the first
// candidate path only.
type RouteSummary struct {
	DistanceMeters  float64            `json:"distance_meters"`
	DurationSeconds float64            `json:"duration_seconds"`
	Geometry        GeoLineString      `json:"geometry"`
	Instructions    []RouteInstruction `json:"instructions"`
}

// Plan holds the subset of a user's plan the engine needs: how many
// public spots they may keep active at once.
type Plan struct {
	UserID         string `json:"user_id"`
	MaxActiveSpots int    `json:"max_active_spots"`
}
