package usecases

import (
	"fmt"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/pkg/geospatial"
)

const selectionCircleID = "selection-area"

// SelectionArea is a circular admissibility region for spot placement,
// centered on the user. The end-user variant renders its boundary; the
// administrative variant uses a radius large enough to be non-binding
// and draws nothing.
type SelectionArea struct {
	surface        ports.MapSurface
	center         domain.GeoPoint
	maxRadius      float64
	renderBoundary bool
	shown          bool
}

// NewSelectionArea creates a selection area. maxRadiusMeters must be
// positive.
func NewSelectionArea(surface ports.MapSurface, center domain.GeoPoint, maxRadiusMeters float64, renderBoundary bool) (*SelectionArea, error) {
	if maxRadiusMeters <= 0 {
		return nil, fmt.Errorf("selection area radius must be positive, got %f", maxRadiusMeters)
	}
	return &SelectionArea{
		surface:        surface,
		center:         center,
		maxRadius:      maxRadiusMeters,
		renderBoundary: renderBoundary,
	}, nil
}

// Contains reports whether p is admissible. The boundary itself is
// admissible (inclusive).
func (a *SelectionArea) Contains(p domain.GeoPoint) bool {
	return geospatial.Distance(a.center, p) <= a.maxRadius
}

// Center returns the area's reference point.
func (a *SelectionArea) Center() domain.GeoPoint { return a.center }

// MaxRadius returns the admissibility radius in meters.
func (a *SelectionArea) MaxRadius() float64 { return a.maxRadius }

// Show renders the boundary circle. Idempotent: calling Show twice never
// duplicates the overlay. The non-rendering variant still flips its
// shown state so Hide stays symmetric.
func (a *SelectionArea) Show() {
	if a.shown {
		return
	}
	a.shown = true
	if a.renderBoundary {
		a.surface.AddCircle(selectionCircleID, a.center, a.maxRadius)
	}
}

// Hide removes the boundary circle. A no-op when already hidden.
func (a *SelectionArea) Hide() {
	if !a.shown {
		return
	}
	a.shown = false
	if a.renderBoundary {
		a.surface.RemoveCircle(selectionCircleID)
	}
}
