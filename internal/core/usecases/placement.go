package usecases

import (
	"context"
	"sync"

	"github.com/looplab/fsm"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
)

const placementMarkerID = "placement-candidate"

// Placement controller states and events.
const (
	placementIdle   = "idle"
	placementActive = "active"

	eventPlacementStart = "start"
	eventPlacementStop  = "stop"
)

// PlacementController is a short-lived state machine bound to one spot
// creation session. It owns the draggable candidate marker and enforces
// the selection area constraint on clicks and drags.
type PlacementController struct {
	mu       sync.Mutex
	machine  *fsm.FSM
	surface  ports.MapSurface
	notifier ports.Notifier

	area      *SelectionArea
	candidate *domain.GeoPoint
	report    func(*domain.GeoPoint)
}

// NewPlacementController creates an idle controller.
func NewPlacementController(surface ports.MapSurface, notifier ports.Notifier) *PlacementController {
	c := &PlacementController{
		surface:  surface,
		notifier: notifier,
	}
	c.machine = fsm.NewFSM(
		placementIdle,
		fsm.Events{
			{Name: eventPlacementStart, Src: []string{placementIdle}, Dst: placementActive},
			{Name: eventPlacementStop, Src: []string{placementActive}, Dst: placementIdle},
		},
		fsm.Callbacks{},
	)
	return c
}

// Active reports whether a creation session is in progress.
func (c *PlacementController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current() == placementActive
}

// Candidate returns the current admissible candidate position, or nil
// before the first placement.
func (c *PlacementController) Candidate() *domain.GeoPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidate
}

// Start begins a creation session anchored at initialAnchor inside area,
// shows the area boundary, places the draggable marker and immediately
// reports the anchor. Re-entrant: starting while active is a no-op that
// keeps the existing candidate.
func (c *PlacementController) Start(area *SelectionArea, initialAnchor domain.GeoPoint, report func(*domain.GeoPoint)) {
	c.mu.Lock()
	if err := c.machine.Event(context.Background(), eventPlacementStart); err != nil {
		c.mu.Unlock()
		return // already active
	}
	c.area = area
	c.report = report
	anchor := initialAnchor
	c.candidate = &anchor

	area.Show()
	c.surface.AddMarker(placementMarkerID, anchor, ports.MarkerOptions{Icon: "candidate", Draggable: true})
	cb := c.report
	c.mu.Unlock()

	if cb != nil {
		cb(&anchor)
	}
}

// HandleMapClick moves the candidate marker to the clicked point if it is
// admissible; otherwise the click is rejected with user feedback and the
// marker does not move.
func (c *PlacementController) HandleMapClick(at domain.GeoPoint) {
	c.mu.Lock()
	if c.machine.Current() != placementActive {
		c.mu.Unlock()
		return
	}
	if !c.area.Contains(at) {
		c.mu.Unlock()
		c.notifier.Toast(ports.ToastWarning, "That point is too far away — pick a spot closer to you")
		return
	}
	p := at
	c.candidate = &p
	c.surface.MoveMarker(placementMarkerID, p)
	cb := c.report
	c.mu.Unlock()

	if cb != nil {
		cb(&p)
	}
}

// HandleDragEnd applies the same admissibility check to a marker drag.
// An inadmissible drop snaps the marker back to the last admissible
// position and reports nothing.
func (c *PlacementController) HandleDragEnd(to domain.GeoPoint) {
	c.mu.Lock()
	if c.machine.Current() != placementActive {
		c.mu.Unlock()
		return
	}
	if !c.area.Contains(to) {
		last := c.candidate
		if last != nil {
			c.surface.MoveMarker(placementMarkerID, *last)
		}
		c.mu.Unlock()
		c.notifier.Toast(ports.ToastWarning, "That point is too far away — the marker was moved back")
		return
	}
	p := to
	c.candidate = &p
	c.surface.MoveMarker(placementMarkerID, p)
	cb := c.report
	c.mu.Unlock()

	if cb != nil {
		cb(&p)
	}
}

// Stop ends the session: hides the area, removes the marker and reports
// a nil candidate. Idempotent.
func (c *PlacementController) Stop() {
	c.mu.Lock()
	if err := c.machine.Event(context.Background(), eventPlacementStop); err != nil {
		c.mu.Unlock()
		return // already idle
	}
	c.area.Hide()
	c.surface.RemoveMarker(placementMarkerID)
	c.candidate = nil
	cb := c.report
	c.report = nil
	c.area = nil
	c.mu.Unlock()

	if cb != nil {
		cb(nil)
	}
}
