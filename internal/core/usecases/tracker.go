package usecases

import (
	"sync"
	"time"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/pkg/geospatial"
)

const (
	positionMarkerID = "you-are-here"
	accuracyRingID   = "you-are-here-accuracy"
)

// TrackerConfig tunes the live position tracker.
type TrackerConfig struct {
	// MinMoveMeters is the minimum displacement for an update to be
	// accepted after the first fix.
	MinMoveMeters float64
	// Debounce coalesces rapid successive accepted updates into one
	// published event.
	Debounce time.Duration
}

// PositionTracker wraps the continuous geolocation source, filters GPS
// jitter and republishes a stable position event. It also renders the
// "you are here" indicator as a side effect.
type PositionTracker struct {
	mu       sync.Mutex
	cfg      TrackerConfig
	surface  ports.MapSurface
	notifier ports.Notifier
	source   ports.GeolocationSource

	lastAccepted  *domain.LivePosition
	lastPublished *domain.LivePosition
	pending       *domain.LivePosition
	timer         *time.Timer
	subscribers   []func(domain.LivePosition)
	unsubscribe   func()
	warned        bool
	stopped       bool
}

// NewPositionTracker creates a tracker. Zero config fields fall back to
// the production defaults (5 m, 1 s).
func NewPositionTracker(source ports.GeolocationSource, surface ports.MapSurface, notifier ports.Notifier, cfg TrackerConfig) *PositionTracker {
	if cfg.MinMoveMeters <= 0 {
		cfg.MinMoveMeters = 5
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = time.Second
	}
	return &PositionTracker{
		cfg:      cfg,
		surface:  surface,
		notifier: notifier,
		source:   source,
	}
}

// Subscribe registers a listener for published positions. Must be called
// before Start; listeners are invoked in registration order.
func (t *PositionTracker) Subscribe(fn func(domain.LivePosition)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}

// Start subscribes to the geolocation source.
func (t *PositionTracker) Start() error {
	unsub, err := t.source.Subscribe(t.onUpdate, t.onError)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.unsubscribe = unsub
	t.mu.Unlock()
	return nil
}

// Current returns the most recently accepted position, or nil before the
// first fix.
func (t *PositionTracker) Current() *domain.LivePosition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastAccepted
}

// Stop unsubscribes and cancels any pending publish.
func (t *PositionTracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	unsub := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (t *PositionTracker) onUpdate(point domain.GeoPoint, accuracyMeters float64) {
	pos := domain.LivePosition{Point: point, AccuracyMeters: accuracyMeters, Time: time.Now()}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	first := t.lastAccepted == nil
	if !first && geospatial.Distance(t.lastAccepted.Point, point) <= t.cfg.MinMoveMeters {
		t.mu.Unlock()
		return
	}
	t.lastAccepted = &pos
	t.renderIndicator(pos)

	if first {
		// First fix: recenter and publish without waiting out the debounce.
		t.surface.SetCenter(point)
		t.lastPublished = &pos
		subs := append([]func(domain.LivePosition){}, t.subscribers...)
		t.mu.Unlock()
		for _, fn := range subs {
			fn(pos)
		}
		return
	}

	// Coalesce: keep only the newest pending update, publish on timer.
	t.pending = &pos
	if t.timer == nil {
		t.timer = time.AfterFunc(t.cfg.Debounce, t.flush)
	}
	t.mu.Unlock()
}

func (t *PositionTracker) flush() {
	t.mu.Lock()
	t.timer = nil
	pos := t.pending
	t.pending = nil
	if pos == nil || t.stopped {
		t.mu.Unlock()
		return
	}
	// Ordering guard: never publish a reading older than the last one out.
	if t.lastPublished != nil && pos.Time.Before(t.lastPublished.Time) {
		t.mu.Unlock()
		return
	}
	t.lastPublished = pos
	subs := append([]func(domain.LivePosition){}, t.subscribers...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(*pos)
	}
}

func (t *PositionTracker) onError(reason domain.GeoErrorReason) {
	t.mu.Lock()
	warned := t.warned
	t.warned = true
	t.mu.Unlock()

	// Warn once; the engine keeps running with no live position.
	if !warned {
		t.notifier.Toast(ports.ToastWarning, "Location unavailable ("+string(reason)+") — live features are limited")
	}
}

// renderIndicator draws the filled dot plus accuracy ring. Caller holds
// the lock.
func (t *PositionTracker) renderIndicator(pos domain.LivePosition) {
	t.surface.RemoveCircle(accuracyRingID)
	t.surface.AddCircle(accuracyRingID, pos.Point, pos.AccuracyMeters)
	t.surface.RemoveMarker(positionMarkerID)
	t.surface.AddMarker(positionMarkerID, pos.Point, ports.MarkerOptions{Icon: "position-dot"})
}
