package usecases

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/pkg/geospatial"
	"github.com/samirrijal/aparka/internal/pkg/metrics"
)

const routeLineID = "active-route"

// Route session states and events.
const (
	RouteEmpty      = "empty"
	RouteRequesting = "requesting"
	RouteReady      = "ready"
	RouteNavigating = "navigating"

	eventRouteRequest  = "request"
	eventRouteResolve  = "resolve"
	eventRouteFail     = "fail"
	eventRouteNavigate = "navigate"
	eventRouteClose    = "close"
)

const destinationTargetID = "destination"

// RouteConfig tunes one route session.
type RouteConfig struct {
	// InstructionRadiusMeters marks an instruction as passed.
	InstructionRadiusMeters float64
	// ArrivalRadiusMeters triggers the near-destination signal.
	ArrivalRadiusMeters float64
	// RequestTimeout bounds the routing provider call.
	RequestTimeout time.Duration
	// ProximityInterval is the monitor tick.
	ProximityInterval time.Duration
}

func (c *RouteConfig) defaults() {
	if c.InstructionRadiusMeters <= 0 {
		c.InstructionRadiusMeters = 50
	}
	if c.ArrivalRadiusMeters <= 0 {
		c.ArrivalRadiusMeters = 100
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// RouteEvents are the session's callbacks into the host UI.
type RouteEvents struct {
	OnReady           func(summary *domain.RouteSummary)
	OnFailed          func(err error)
	OnInstructionDone func(index int)
	OnNearDestination func()
}

// RouteSession owns the lifecycle of exactly one active route: request,
// render, turn-by-turn tracking, arrival detection, teardown.
type RouteSession struct {
	mu       sync.Mutex
	armMu    sync.Mutex
	machine  *fsm.FSM
	provider ports.RoutingProvider
	surface  ports.MapSurface
	notifier ports.Notifier
	monitor  *ProximityMonitor
	events   RouteEvents
	cfg      RouteConfig

	origin          domain.GeoPoint
	destination     domain.GeoPoint
	destinationName string

	summary      *domain.RouteSummary
	completed    map[int]bool
	current      int
	arrived      bool
	lineRendered bool
	generation   uint64
}

// NewRouteSession creates an empty session. position supplies the live
// position for proximity tracking and may return nil.
func NewRouteSession(
	provider ports.RoutingProvider,
	surface ports.MapSurface,
	notifier ports.Notifier,
	position func() *domain.LivePosition,
	events RouteEvents,
	cfg RouteConfig,
) *RouteSession {
	cfg.defaults()
	s := &RouteSession{
		provider:  provider,
		surface:   surface,
		notifier:  notifier,
		events:    events,
		cfg:       cfg,
		completed: make(map[int]bool),
	}
	s.monitor = NewProximityMonitor(cfg.ProximityInterval, position)
	s.machine = fsm.NewFSM(
		RouteEmpty,
		fsm.Events{
			{Name: eventRouteRequest, Src: []string{RouteEmpty}, Dst: RouteRequesting},
			{Name: eventRouteResolve, Src: []string{RouteRequesting}, Dst: RouteReady},
			{Name: eventRouteFail, Src: []string{RouteRequesting}, Dst: RouteEmpty},
			{Name: eventRouteNavigate, Src: []string{RouteReady}, Dst: RouteNavigating},
			{Name: eventRouteClose, Src: []string{RouteRequesting, RouteReady, RouteNavigating}, Dst: RouteEmpty},
		},
		fsm.Callbacks{},
	)
	return s
}

// State returns the session state name.
func (s *RouteSession) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// Summary returns the parsed route, or nil before the provider responds.
func (s *RouteSession) Summary() *domain.RouteSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// CurrentInstruction returns the index of the next instruction to pass.
func (s *RouteSession) CurrentInstruction() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// InstructionDone reports whether instruction i has been passed.
func (s *RouteSession) InstructionDone(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[i]
}

// Open tears down any previous route state, fits the map to the
// origin/destination pair as immediate feedback, then requests a route.
// The provider call runs asynchronously; a response that arrives after
// the session was closed or reopened is discarded.
func (s *RouteSession) Open(ctx context.Context, origin, destination domain.GeoPoint, destinationName string) error {
	s.Close()

	s.mu.Lock()
	if err := s.machine.Event(context.Background(), eventRouteRequest); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("open route: %w", err)
	}
	s.origin = origin
	s.destination = destination
	s.destinationName = destinationName
	s.generation++
	gen := s.generation

	if b, ok := geospatial.BoundsOf(origin, destination); ok {
		s.surface.FitBounds(b, 200)
	}
	s.mu.Unlock()

	metrics.RoutesRequested.Inc()

	go s.request(ctx, gen, origin, destination)
	return nil
}

func (s *RouteSession) request(ctx context.Context, gen uint64, origin, destination domain.GeoPoint) {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	summary, err := s.provider.Route(reqCtx, origin, destination)

	s.mu.Lock()
	if gen != s.generation || s.machine.Current() != RouteRequesting {
		// The user moved on while this request was in flight.
		s.mu.Unlock()
		metrics.StaleRouteResponses.Inc()
		return
	}

	if err != nil {
		_ = s.machine.Event(context.Background(), eventRouteFail)
		s.removeLineLocked()
		s.mu.Unlock()
		s.notifier.Toast(ports.ToastError, "Could not calculate a route to "+s.destinationName)
		if s.events.OnFailed != nil {
			s.events.OnFailed(err)
		}
		return
	}

	s.summary = summary
	s.surface.DrawLine(routeLineID, summary.Geometry)
	s.lineRendered = true
	if b, ok := geospatial.BoundsOf(summary.Geometry.Coordinates...); ok {
		s.surface.FitBounds(b, 50)
	}
	_ = s.machine.Event(context.Background(), eventRouteResolve)
	targets := s.targetsLocked(false)
	s.mu.Unlock()

	// Arrival detection starts as soon as the route is ready — a user who
	// never taps "navigate" still gets the confirmation prompt.
	s.arm(gen, RouteReady, targets)

	if s.events.OnReady != nil {
		s.events.OnReady(summary)
	}
}

// StartNavigating begins turn-by-turn tracking. Only valid from ready.
func (s *RouteSession) StartNavigating() error {
	s.mu.Lock()
	if err := s.machine.Event(context.Background(), eventRouteNavigate); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start navigating: %w", err)
	}
	if !s.lineRendered && s.summary != nil {
		s.surface.DrawLine(routeLineID, s.summary.Geometry)
		s.lineRendered = true
	}
	targets := s.targetsLocked(true)
	gen := s.generation
	s.mu.Unlock()

	s.arm(gen, RouteNavigating, targets)
	return nil
}

// targetsLocked builds the proximity target set. Caller holds the lock.
func (s *RouteSession) targetsLocked(includeInstructions bool) []ProximityTarget {
	targets := []ProximityTarget{{
		ID:              destinationTargetID,
		Point:           s.destination,
		ThresholdMeters: s.cfg.ArrivalRadiusMeters,
	}}
	if includeInstructions && s.summary != nil {
		for i, in := range s.summary.Instructions {
			if in.Anchor == nil {
				continue
			}
			targets = append(targets, ProximityTarget{
				ID:              "instruction-" + strconv.Itoa(i),
				Point:           *in.Anchor,
				ThresholdMeters: s.cfg.InstructionRadiusMeters,
			})
		}
	}
	return targets
}

// arm points the proximity monitor at targets. It must run without s.mu:
// Watch performs its immediate check synchronously, and an in-range
// target calls straight back into onEnter, which takes the lock. armMu
// serializes competing arms; the generation and state checks drop arms
// that lost the race against a Close, a reopen, or StartNavigating.
func (s *RouteSession) arm(gen uint64, state string, targets []ProximityTarget) {
	s.armMu.Lock()
	defer s.armMu.Unlock()

	s.mu.Lock()
	stale := gen != s.generation || s.machine.Current() != state
	s.mu.Unlock()
	if stale {
		return
	}
	s.monitor.Watch(targets, func(id string) { s.onEnter(gen, id) })
}

func (s *RouteSession) onEnter(gen uint64, id string) {
	if id == destinationTargetID {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return
		}
		already := s.arrived
		s.arrived = true
		s.mu.Unlock()
		if !already && s.events.OnNearDestination != nil {
			metrics.ArrivalsDetected.Inc()
			s.events.OnNearDestination()
		}
		return
	}

	i, err := strconv.Atoi(strings.TrimPrefix(id, "instruction-"))
	if err != nil {
		return
	}
	s.mu.Lock()
	if gen != s.generation || s.completed[i] {
		s.mu.Unlock()
		return
	}
	// Completion is monotonic: backtracking never un-marks an instruction.
	s.completed[i] = true
	if i+1 > s.current {
		s.current = i + 1
	}
	s.mu.Unlock()

	if s.events.OnInstructionDone != nil {
		s.events.OnInstructionDone(i)
	}
}

// Close stops proximity tracking, removes the rendered line and resets
// all instruction state. Safe to call from any state, repeatedly.
func (s *RouteSession) Close() {
	s.mu.Lock()
	if s.machine.Current() != RouteEmpty {
		_ = s.machine.Event(context.Background(), eventRouteClose)
	}
	s.generation++ // invalidates in-flight provider responses and arms
	s.removeLineLocked()
	s.summary = nil
	s.completed = make(map[int]bool)
	s.current = 0
	s.arrived = false
	s.mu.Unlock()

	s.armMu.Lock()
	s.monitor.Unwatch()
	s.armMu.Unlock()
}

func (s *RouteSession) removeLineLocked() {
	if s.lineRendered {
		s.surface.RemoveLine(routeLineID)
		s.lineRendered = false
	}
}
