package usecases_test

import (
	"testing"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/usecases"
)

func newPlacementFixture(t *testing.T) (*usecases.PlacementController, *usecases.SelectionArea, *fakeSurface, *fakeNotifier) {
	t.Helper()
	surface := newFakeSurface()
	notifier := &fakeNotifier{}
	area, err := usecases.NewSelectionArea(surface, bilbao, 200, true)
	if err != nil {
		t.Fatalf("NewSelectionArea: %v", err)
	}
	return usecases.NewPlacementController(surface, notifier), area, surface, notifier
}

func TestPlacement_StartPlacesMarkerAndReportsAnchor(t *testing.T) {
	ctrl, area, surface, _ := newPlacementFixture(t)

	var reported []*domain.GeoPoint
	ctrl.Start(area, bilbao, func(p *domain.GeoPoint) { reported = append(reported, p) })

	if !ctrl.Active() {
		t.Fatal("expected controller active after Start")
	}
	if _, ok := surface.markerAt("placement-candidate"); !ok {
		t.Error("expected candidate marker on the surface")
	}
	if !surface.hasCircle("selection-area") {
		t.Error("expected selection area boundary shown")
	}
	if len(reported) != 1 || reported[0] == nil || *reported[0] != bilbao {
		t.Fatalf("expected the anchor reported once, got %v", reported)
	}
}

func TestPlacement_StartWhileActiveIsNoOp(t *testing.T) {
	ctrl, area, surface, _ := newPlacementFixture(t)

	ctrl.Start(area, bilbao, nil)
	moved := domain.GeoPoint{Lat: bilbao.Lat + 50*metersLat, Lon: bilbao.Lon}
	ctrl.HandleMapClick(moved)

	other := domain.GeoPoint{Lat: bilbao.Lat + 20*metersLat, Lon: bilbao.Lon}
	ctrl.Start(area, other, nil)

	if got := ctrl.Candidate(); got == nil || *got != moved {
		t.Errorf("re-entrant Start must keep the existing candidate, got %v", got)
	}
	if got := surface.countOps("add_marker:placement-candidate"); got != 1 {
		t.Errorf("expected one add_marker, got %d", got)
	}
}

func TestPlacement_ClickInsideMovesMarker(t *testing.T) {
	ctrl, area, surface, notifier := newPlacementFixture(t)

	var reported []*domain.GeoPoint
	ctrl.Start(area, bilbao, func(p *domain.GeoPoint) { reported = append(reported, p) })

	target := domain.GeoPoint{Lat: bilbao.Lat + 100*metersLat, Lon: bilbao.Lon}
	ctrl.HandleMapClick(target)

	if at, _ := surface.markerAt("placement-candidate"); at != target {
		t.Errorf("expected marker moved to %v, got %v", target, at)
	}
	if len(reported) != 2 || *reported[1] != target {
		t.Fatalf("expected click reported, got %v", reported)
	}
	if notifier.count() != 0 {
		t.Errorf("admissible click must not toast, got %d", notifier.count())
	}
}

func TestPlacement_ClickOutsideRejectedWithFeedback(t *testing.T) {
	ctrl, area, surface, notifier := newPlacementFixture(t)

	var reports int
	ctrl.Start(area, bilbao, func(*domain.GeoPoint) { reports++ })

	outside := domain.GeoPoint{Lat: bilbao.Lat + 500*metersLat, Lon: bilbao.Lon}
	ctrl.HandleMapClick(outside)

	if at, _ := surface.markerAt("placement-candidate"); at != bilbao {
		t.Errorf("rejected click must not move the marker, got %v", at)
	}
	if got := ctrl.Candidate(); got == nil || *got != bilbao {
		t.Errorf("rejected click must keep the candidate, got %v", got)
	}
	if reports != 1 {
		t.Errorf("rejected click must not report, got %d reports", reports)
	}
	if notifier.count() != 1 {
		t.Errorf("expected exactly one warning toast, got %d", notifier.count())
	}
}

func TestPlacement_DragOutsideSnapsBack(t *testing.T) {
	ctrl, area, surface, notifier := newPlacementFixture(t)
	ctrl.Start(area, bilbao, nil)

	good := domain.GeoPoint{Lat: bilbao.Lat + 80*metersLat, Lon: bilbao.Lon}
	ctrl.HandleDragEnd(good)
	if at, _ := surface.markerAt("placement-candidate"); at != good {
		t.Fatalf("expected admissible drag applied, marker at %v", at)
	}

	bad := domain.GeoPoint{Lat: bilbao.Lat + 900*metersLat, Lon: bilbao.Lon}
	ctrl.HandleDragEnd(bad)

	if at, _ := surface.markerAt("placement-candidate"); at != good {
		t.Errorf("expected snap-back to %v, marker at %v", good, at)
	}
	if got := ctrl.Candidate(); got == nil || *got != good {
		t.Errorf("candidate must stay at the last admissible point, got %v", got)
	}
	if notifier.count() != 1 {
		t.Errorf("expected one snap-back toast, got %d", notifier.count())
	}
}

func TestPlacement_StopReportsNilOnce(t *testing.T) {
	ctrl, area, surface, _ := newPlacementFixture(t)

	var reported []*domain.GeoPoint
	ctrl.Start(area, bilbao, func(p *domain.GeoPoint) { reported = append(reported, p) })

	ctrl.Stop()
	ctrl.Stop()

	if ctrl.Active() {
		t.Error("expected controller idle after Stop")
	}
	if _, ok := surface.markerAt("placement-candidate"); ok {
		t.Error("expected candidate marker removed")
	}
	if surface.hasCircle("selection-area") {
		t.Error("expected selection area hidden")
	}
	// Start's anchor report plus exactly one nil for the first Stop.
	if len(reported) != 2 || reported[1] != nil {
		t.Fatalf("expected [anchor, nil] reports, got %v", reported)
	}
}

func TestPlacement_InputIgnoredWhileIdle(t *testing.T) {
	ctrl, _, surface, notifier := newPlacementFixture(t)

	ctrl.HandleMapClick(bilbao)
	ctrl.HandleDragEnd(bilbao)

	if got := surface.countOps("move_marker"); got != 0 {
		t.Errorf("idle controller must ignore input, got %d moves", got)
	}
	if notifier.count() != 0 {
		t.Errorf("idle controller must not toast, got %d", notifier.count())
	}
}
