package usecases

import (
	"sync"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
)

// MarkerRegistry keeps the rendered spot markers in sync with the latest
// backend snapshot. Reconciliation is keyed so an unchanged marker is
// left untouched rather than removed and re-added.
type MarkerRegistry struct {
	mu       sync.Mutex
	surface  ports.MapSurface
	rendered map[string]domain.SpotMarker
}

// NewMarkerRegistry creates an empty registry drawing onto surface.
func NewMarkerRegistry(surface ports.MapSurface) *MarkerRegistry {
	return &MarkerRegistry{
		surface:  surface,
		rendered: make(map[string]domain.SpotMarker),
	}
}

// Reconcile applies a fresh snapshot: markers missing from it are
// removed, new ones are added, and markers whose key is still present
// are updated in place when their payload changed.
func (r *MarkerRegistry) Reconcile(snapshot []domain.SpotMarker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]domain.SpotMarker, len(snapshot))
	for _, m := range snapshot {
		next[m.Key()] = m
	}

	for key, old := range r.rendered {
		fresh, keep := next[key]
		if !keep {
			r.surface.RemoveMarker(key)
			delete(r.rendered, key)
			continue
		}
		if fresh != old {
			r.surface.MoveMarker(key, fresh.Location)
			r.surface.SetMarkerIcon(key, markerIcon(fresh))
			r.rendered[key] = fresh
		}
	}

	for key, m := range next {
		if _, ok := r.rendered[key]; ok {
			continue
		}
		r.surface.AddMarker(key, m.Location, ports.MarkerOptions{Icon: markerIcon(m)})
		r.rendered[key] = m
	}
}

// Get returns the rendered marker for key, if any.
func (r *MarkerRegistry) Get(key string) (domain.SpotMarker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rendered[key]
	return m, ok
}

// Len returns the number of rendered markers.
func (r *MarkerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rendered)
}

// Clear removes every rendered marker.
func (r *MarkerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.rendered {
		r.surface.RemoveMarker(key)
		delete(r.rendered, key)
	}
}

func markerIcon(m domain.SpotMarker) string {
	switch m.Kind {
	case domain.MarkerPrivate:
		if m.IsOpen {
			return "parking-open"
		}
		return "parking-closed"
	default:
		if m.AvailableSpots == 0 {
			return "spot-full"
		}
		return "spot-free"
	}
}
