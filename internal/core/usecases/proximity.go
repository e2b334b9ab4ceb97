package usecases

import (
	"sync"
	"time"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/pkg/geospatial"
)

// ProximityTarget is one point the monitor watches.
type ProximityTarget struct {
	ID              string
	Point           domain.GeoPoint
	ThresholdMeters float64
}

// ProximityMonitor polls a live position source on a fixed tick and
// fires onEnter exactly once per target when the position comes within
// the target's threshold. Fired targets stay fired for the lifetime of
// the watch; Unwatch discards all fired state.
type ProximityMonitor struct {
	mu       sync.Mutex
	interval time.Duration
	position func() *domain.LivePosition

	targets []ProximityTarget
	fired   map[string]bool
	onEnter func(id string)
	stop    chan struct{}
}

// NewProximityMonitor creates a monitor polling position on interval.
// A non-positive interval falls back to one second.
func NewProximityMonitor(interval time.Duration, position func() *domain.LivePosition) *ProximityMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &ProximityMonitor{
		interval: interval,
		position: position,
	}
}

// Watch replaces the watched target set and starts the tick. The first
// check runs immediately so a position already in range is detected
// without waiting a full tick.
func (m *ProximityMonitor) Watch(targets []ProximityTarget, onEnter func(id string)) {
	m.Unwatch()

	m.mu.Lock()
	m.targets = append([]ProximityTarget{}, targets...)
	m.fired = make(map[string]bool, len(targets))
	m.onEnter = onEnter
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.check()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-stop:
				return
			}
		}
	}()
}

// Unwatch stops the tick and discards fired state. Safe to call multiple
// times and before any Watch.
func (m *ProximityMonitor) Unwatch() {
	m.mu.Lock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.targets = nil
	m.fired = nil
	m.onEnter = nil
	m.mu.Unlock()
}

func (m *ProximityMonitor) check() {
	pos := m.position()
	if pos == nil {
		return
	}

	m.mu.Lock()
	var entered []string
	for _, t := range m.targets {
		if m.fired[t.ID] {
			continue
		}
		if geospatial.Distance(pos.Point, t.Point) <= t.ThresholdMeters {
			m.fired[t.ID] = true
			entered = append(entered, t.ID)
		}
	}
	onEnter := m.onEnter
	m.mu.Unlock()

	if onEnter == nil {
		return
	}
	for _, id := range entered {
		onEnter(id)
	}
}
