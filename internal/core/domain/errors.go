package domain

import (
	"errors"
	"strconv"
)

// Sentinel errors shared across the engine. Adapters wrap transport
// detail around these; callers branch with errors.Is.
var (
	// ErrNoPath means the routing provider could not find a path between
	// the requested points.
	ErrNoPath = errors.New("no path found")

	// ErrRoutingUnavailable covers provider network failures, bad
	// credentials and malformed responses.
	ErrRoutingUnavailable = errors.New("routing provider unavailable")

	// ErrOutsideArea is a recoverable user-input rejection, not a fault:
	// the candidate point lies outside the selection area.
	ErrOutsideArea = errors.New("point outside selection area")

	// ErrNoPosition means a live position is required but none has been
	// acquired yet.
	ErrNoPosition = errors.New("no live position available")

	// ErrLimitExceeded means the user already has the maximum number of
	// active public spots their plan allows.
	ErrLimitExceeded = errors.New("active spot limit exceeded")

	// ErrUnauthorized means the backend rejected the caller's session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation means the spot payload was rejected by the backend.
	ErrValidation = errors.New("invalid spot data")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// GeoErrorReason classifies a geolocation source failure.
type GeoErrorReason string

const (
	GeoPermissionDenied GeoErrorReason = "permission_denied"
	GeoUnavailable      GeoErrorReason = "unavailable"
	GeoTimeout          GeoErrorReason = "timeout"
)

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 7, 64)
}
