package ports

import (
	"context"
	"time"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// RoutingProvider requests a route between two points from an external
// directions service. Implementations return the first candidate path
// only, already normalized: every instruction carries a resolved anchor.
// Failures map to domain.ErrNoPath or domain.ErrRoutingUnavailable.
type RoutingProvider interface {
	Route(ctx context.Context, origin, destination domain.GeoPoint) (*domain.RouteSummary, error)
}

// GeolocationSource delivers continuous position updates. Subscribe
// returns an unsubscribe function; after calling it no further callbacks
// are delivered.
type GeolocationSource interface {
	Subscribe(
		onUpdate func(point domain.GeoPoint, accuracyMeters float64),
		onError func(reason domain.GeoErrorReason),
	) (unsubscribe func(), err error)
}

// MarkerOptions controls how a marker is rendered.
type MarkerOptions struct {
	Icon      string `json:"icon,omitempty"`
	Draggable bool   `json:"draggable,omitempty"`
}

// MapSurface is the shared interactive map widget. Only one engine
// component may hold drawing rights at a time; the navigation
// orchestrator coordinates access.
type MapSurface interface {
	AddMarker(id string, at domain.GeoPoint, opts MarkerOptions)
	MoveMarker(id string, to domain.GeoPoint)
	SetMarkerIcon(id string, icon string)
	RemoveMarker(id string)

	AddCircle(id string, center domain.GeoPoint, radiusMeters float64)
	RemoveCircle(id string)

	DrawLine(id string, line domain.GeoLineString)
	RemoveLine(id string)

	SetCenter(at domain.GeoPoint)
	FitBounds(bounds domain.Bounds, paddingMeters float64)

	OnClick(fn func(at domain.GeoPoint)) (remove func())
	OnMarkerClick(fn func(markerID string)) (remove func())
	OnMarkerDragEnd(fn func(markerID string, to domain.GeoPoint)) (remove func())
}

// Toast severity levels.
const (
	ToastInfo    = "info"
	ToastWarning = "warning"
	ToastError   = "error"
)

// Notifier is fire-and-forget user feedback. Not part of the engine's
// correctness.
type Notifier interface {
	Toast(level, message string)
}

// CacheService provides read-through caching. Get reports an absent key
// as domain.ErrNotFound; any other error means the cache is unreachable.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPosition(ctx context.Context, sessionID string, pos *domain.LivePosition) error
	PublishSpotRefresh(ctx context.Context) error
	PublishSpotStatus(ctx context.Context, spotID string, status domain.SpotStatus) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeSpotRefresh(ctx context.Context, handler func(ctx context.Context) error) error
	SubscribeSpotStatus(ctx context.Context, handler func(ctx context.Context, spotID string, status domain.SpotStatus) error) error
}

// LifecycleScheduler starts the expiry workflow for a freshly created
// public spot. A nil scheduler is tolerated (spot simply never
// auto-expires, useful in tests).
type LifecycleScheduler interface {
	ScheduleExpiry(ctx context.Context, spotID string, ttl time.Duration) error
	SignalResolution(ctx context.Context, spotID string, status domain.SpotStatus) error
}
