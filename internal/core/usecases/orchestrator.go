package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/pkg/metrics"
)

// NavigationConfig tunes one navigator instance.
type NavigationConfig struct {
	// RefreshInterval is the periodic spot snapshot refresh tick.
	RefreshInterval time.Duration
	// UserSelectionRadiusMeters bounds spot placement for end users.
	UserSelectionRadiusMeters float64
	// AdminSelectionRadiusMeters is the effectively unbounded variant for
	// administrative placement.
	AdminSelectionRadiusMeters float64

	Tracker TrackerConfig
	Route   RouteConfig
}

func (c *NavigationConfig) defaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 30 * time.Second
	}
	if c.UserSelectionRadiusMeters <= 0 {
		c.UserSelectionRadiusMeters = 200
	}
	if c.AdminSelectionRadiusMeters <= 0 {
		c.AdminSelectionRadiusMeters = 50_000
	}
}

// Navigator is the per-connection façade over the map engine. It owns
// the position tracker, the marker registry and at most one of an
// active route session or an active placement session at a time.
type Navigator struct {
	mu sync.Mutex

	id      string
	userID  string
	isAdmin bool
	cfg     NavigationConfig
	log     *slog.Logger

	surface   ports.MapSurface
	notifier  ports.Notifier
	routing   ports.RoutingProvider
	publisher ports.EventPublisher
	spots     *SpotService

	tracker   *PositionTracker
	registry  *MarkerRegistry
	session   *RouteSession
	placement *PlacementController

	selectedKey    string
	arrivalSpotID  string
	refreshStop    chan struct{}
	refreshWarned  bool
	removeHandlers []func()
	started        bool
	closed         bool
}

// NewNavigator wires a navigator for one connected map session.
func NewNavigator(
	id, userID string,
	isAdmin bool,
	surface ports.MapSurface,
	notifier ports.Notifier,
	source ports.GeolocationSource,
	routing ports.RoutingProvider,
	publisher ports.EventPublisher,
	spots *SpotService,
	log *slog.Logger,
	cfg NavigationConfig,
) *Navigator {
	cfg.defaults()
	n := &Navigator{
		id:        id,
		userID:    userID,
		isAdmin:   isAdmin,
		cfg:       cfg,
		log:       log.With("session", id),
		surface:   surface,
		notifier:  notifier,
		routing:   routing,
		publisher: publisher,
		spots:     spots,
	}
	n.tracker = NewPositionTracker(source, surface, notifier, cfg.Tracker)
	n.registry = NewMarkerRegistry(surface)
	n.placement = NewPlacementController(surface, notifier)
	return n
}

// Start begins position tracking, registers the map input handlers and
// kicks off the periodic spot refresh. Calling Start twice is an error.
func (n *Navigator) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return errors.New("navigator already started")
	}
	n.started = true
	n.refreshStop = make(chan struct{})
	stop := n.refreshStop
	n.mu.Unlock()

	if n.publisher != nil {
		n.tracker.Subscribe(func(pos domain.LivePosition) {
			if err := n.publisher.PublishPosition(ctx, n.id, &pos); err != nil {
				n.log.Debug("position publish failed", "error", err)
			}
		})
	}
	if err := n.tracker.Start(); err != nil {
		return err
	}

	n.removeHandlers = append(n.removeHandlers,
		n.surface.OnClick(n.placement.HandleMapClick),
		n.surface.OnMarkerClick(func(markerID string) {
			n.SelectMarker(ctx, markerID)
		}),
		n.surface.OnMarkerDragEnd(func(_ string, to domain.GeoPoint) {
			n.placement.HandleDragEnd(to)
		}),
	)

	metrics.ActiveNavigators.Inc()
	n.refresh(ctx)
	go n.refreshLoop(ctx, stop)
	return nil
}

func (n *Navigator) refreshLoop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(n.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.refresh(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// refresh reconciles the marker registry against the latest snapshot.
// A backend failure keeps the stale markers on screen and warns once per
// outage; the next successful refresh re-arms the warning.
func (n *Navigator) refresh(ctx context.Context) {
	markers, err := n.spots.Markers(ctx)
	if err != nil {
		metrics.SpotRefreshFailures.Inc()
		n.mu.Lock()
		warned := n.refreshWarned
		n.refreshWarned = true
		n.mu.Unlock()
		if !warned {
			n.log.Warn("spot refresh failed", "error", err)
			n.notifier.Toast(ports.ToastWarning, "Spots may be out of date — refresh failed")
		}
		return
	}

	n.mu.Lock()
	n.refreshWarned = false
	selected := n.selectedKey
	n.mu.Unlock()

	n.registry.Reconcile(markers)
	if selected != "" {
		if _, ok := n.registry.Get(selected); ok {
			n.surface.SetMarkerIcon(selected, "spot-selected")
		}
	}
}

// RefreshNow forces an immediate snapshot refresh, typically on a broker
// refresh event.
func (n *Navigator) RefreshNow(ctx context.Context) {
	n.refresh(ctx)
}

// Position returns the latest accepted live position, or nil.
func (n *Navigator) Position() *domain.LivePosition {
	return n.tracker.Current()
}

// SelectMarker opens a route session from the live position to the
// marker. Any previous route or placement session is torn down first so
// at most one is ever active.
func (n *Navigator) SelectMarker(ctx context.Context, key string) {
	marker, ok := n.registry.Get(key)
	if !ok {
		return
	}
	pos := n.tracker.Current()
	if pos == nil {
		n.notifier.Toast(ports.ToastWarning, "Waiting for your position — try again in a moment")
		return
	}

	n.placement.Stop()

	n.mu.Lock()
	if n.session != nil {
		n.session.Close()
	}
	if prev := n.selectedKey; prev != "" && prev != key {
		if m, ok := n.registry.Get(prev); ok {
			n.surface.SetMarkerIcon(prev, markerIcon(m))
		}
	}
	n.selectedKey = key
	if marker.Kind == domain.MarkerPublic {
		n.arrivalSpotID = marker.ID
	} else {
		n.arrivalSpotID = ""
	}
	n.surface.SetMarkerIcon(key, "spot-selected")

	n.session = NewRouteSession(
		n.routing,
		n.surface,
		n.notifier,
		n.tracker.Current,
		RouteEvents{
			OnNearDestination: func() {
				n.notifier.Toast(ports.ToastInfo, "You are close to "+marker.DisplayName+" — did you find a spot?")
			},
			OnFailed: func(err error) {
				n.log.Warn("route request failed", "marker", key, "error", err)
				n.clearSelection()
			},
		},
		n.cfg.Route,
	)
	session := n.session
	n.mu.Unlock()

	if err := session.Open(ctx, pos.Point, marker.Location, marker.DisplayName); err != nil {
		n.log.Warn("route open rejected", "marker", key, "error", err)
	}
}

// StartNavigating switches the active route session into turn-by-turn
// mode.
func (n *Navigator) StartNavigating() error {
	n.mu.Lock()
	session := n.session
	n.mu.Unlock()
	if session == nil {
		return errors.New("no active route")
	}
	return session.StartNavigating()
}

// CloseRoute tears down the active route session, if any, and restores
// the selected marker's icon.
func (n *Navigator) CloseRoute() {
	n.mu.Lock()
	session := n.session
	n.session = nil
	n.mu.Unlock()
	if session != nil {
		session.Close()
	}
	n.clearSelection()
}

func (n *Navigator) clearSelection() {
	n.mu.Lock()
	key := n.selectedKey
	n.selectedKey = ""
	n.arrivalSpotID = ""
	n.mu.Unlock()
	if key == "" {
		return
	}
	if m, ok := n.registry.Get(key); ok {
		n.surface.SetMarkerIcon(key, markerIcon(m))
	}
}

// ConfirmArrival resolves the selected public spot after the arrival
// prompt: found means confirmed, otherwise not_found. The route session
// is closed either way.
func (n *Navigator) ConfirmArrival(ctx context.Context, found bool) error {
	n.mu.Lock()
	spotID := n.arrivalSpotID
	n.mu.Unlock()

	defer n.CloseRoute()

	if spotID == "" {
		return nil // private lots have no resolution to record
	}
	status := domain.SpotNotFound
	if found {
		status = domain.SpotConfirmed
	}
	if err := n.spots.ResolveSpot(ctx, spotID, status); err != nil {
		n.notifier.Toast(ports.ToastError, "Could not record the outcome — please try again")
		return err
	}
	return nil
}

// EnterCreationMode starts a spot placement session centered on the live
// position. Refused with feedback when no position fix exists yet. Any
// active route session is closed first.
func (n *Navigator) EnterCreationMode() {
	pos := n.tracker.Current()
	if pos == nil {
		n.notifier.Toast(ports.ToastWarning, "Your position is not available yet — cannot place a spot")
		return
	}

	n.CloseRoute()

	radius := n.cfg.UserSelectionRadiusMeters
	render := true
	if n.isAdmin {
		radius = n.cfg.AdminSelectionRadiusMeters
		render = false
	}
	area, err := NewSelectionArea(n.surface, pos.Point, radius, render)
	if err != nil {
		n.log.Error("selection area", "error", err)
		return
	}
	n.placement.Start(area, pos.Point, nil)
}

// LeaveCreationMode abandons the placement session without creating
// anything. Idempotent.
func (n *Navigator) LeaveCreationMode() {
	n.placement.Stop()
}

// ConfirmPlacement creates a public spot at the current candidate
// position. The placement session survives a failed create so the user
// can retry or move the marker; it ends only on success.
func (n *Navigator) ConfirmPlacement(ctx context.Context, displayName string, availableSpots int) (*domain.PublicSpot, error) {
	candidate := n.placement.Candidate()
	if candidate == nil {
		n.notifier.Toast(ports.ToastWarning, "Pick a position for the spot first")
		return nil, domain.ErrNoPosition
	}

	spot, err := n.spots.CreateSpot(ctx, n.userID, *candidate, displayName, availableSpots)
	if err != nil {
		if errors.Is(err, domain.ErrLimitExceeded) {
			n.notifier.Toast(ports.ToastError, "Your plan's active spot limit is reached")
		} else {
			n.notifier.Toast(ports.ToastError, "Could not create the spot — please try again")
		}
		return nil, err
	}

	metrics.SpotsCreated.Inc()
	n.placement.Stop()
	n.refresh(ctx)
	return spot, nil
}

// Close shuts the navigator down: input handlers, refresh loop, route
// and placement sessions, position tracking. Safe to call twice.
func (n *Navigator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	if n.refreshStop != nil {
		close(n.refreshStop)
		n.refreshStop = nil
	}
	handlers := n.removeHandlers
	n.removeHandlers = nil
	session := n.session
	n.session = nil
	started := n.started
	n.mu.Unlock()

	for _, remove := range handlers {
		remove()
	}
	if session != nil {
		session.Close()
	}
	n.placement.Stop()
	n.tracker.Stop()
	if started {
		metrics.ActiveNavigators.Dec()
	}
}
