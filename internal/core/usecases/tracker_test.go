package usecases_test

import (
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/usecases"
)

type positionSink struct {
	mu        sync.Mutex
	published []domain.LivePosition
}

func (p *positionSink) record(pos domain.LivePosition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, pos)
}

func (p *positionSink) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func (p *positionSink) last() domain.LivePosition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[len(p.published)-1]
}

func newTrackerFixture(t *testing.T, debounce time.Duration) (*usecases.PositionTracker, *fakeGeoSource, *fakeSurface, *fakeNotifier, *positionSink) {
	t.Helper()
	source := &fakeGeoSource{}
	surface := newFakeSurface()
	notifier := &fakeNotifier{}
	sink := &positionSink{}
	tracker := usecases.NewPositionTracker(source, surface, notifier, usecases.TrackerConfig{
		MinMoveMeters: 5,
		Debounce:      debounce,
	})
	tracker.Subscribe(sink.record)
	if err := tracker.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(tracker.Stop)
	return tracker, source, surface, notifier, sink
}

func TestTracker_FirstFixPublishedImmediately(t *testing.T) {
	tracker, source, surface, _, sink := newTrackerFixture(t, time.Hour)

	source.feed(bilbao, 12)

	if sink.count() != 1 {
		t.Fatalf("expected the first fix published without debounce, got %d", sink.count())
	}
	if sink.last().Point != bilbao {
		t.Errorf("published %v, want %v", sink.last().Point, bilbao)
	}
	if got := surface.countOps("set_center"); got != 1 {
		t.Errorf("expected one recenter on first fix, got %d", got)
	}
	if _, ok := surface.markerAt("you-are-here"); !ok {
		t.Error("expected position indicator rendered")
	}
	if cur := tracker.Current(); cur == nil || cur.Point != bilbao {
		t.Errorf("Current() = %v, want first fix", cur)
	}
}

func TestTracker_SmallMovesFiltered(t *testing.T) {
	tracker, source, surface, _, sink := newTrackerFixture(t, 10*time.Millisecond)

	source.feed(bilbao, 10)
	jitter := domain.GeoPoint{Lat: bilbao.Lat + 3*metersLat, Lon: bilbao.Lon}
	source.feed(jitter, 10)

	time.Sleep(30 * time.Millisecond)
	if sink.count() != 1 {
		t.Fatalf("expected 3 m jitter dropped, got %d publishes", sink.count())
	}
	if cur := tracker.Current(); cur.Point != bilbao {
		t.Errorf("jitter must not update the accepted position, got %v", cur.Point)
	}
	// Only the first fix renders.
	if got := surface.countOps("add_marker:you-are-here"); got != 1 {
		t.Errorf("expected one indicator render, got %d", got)
	}
}

func TestTracker_DebounceCoalescesToNewest(t *testing.T) {
	_, source, _, _, sink := newTrackerFixture(t, 30*time.Millisecond)

	source.feed(bilbao, 10)

	p1 := domain.GeoPoint{Lat: bilbao.Lat + 20*metersLat, Lon: bilbao.Lon}
	p2 := domain.GeoPoint{Lat: bilbao.Lat + 40*metersLat, Lon: bilbao.Lon}
	p3 := domain.GeoPoint{Lat: bilbao.Lat + 60*metersLat, Lon: bilbao.Lon}
	source.feed(p1, 10)
	source.feed(p2, 10)
	source.feed(p3, 10)

	if !waitFor(time.Second, func() bool { return sink.count() == 2 }) {
		t.Fatalf("expected one coalesced publish, got %d", sink.count())
	}
	if sink.last().Point != p3 {
		t.Errorf("expected the newest pending update published, got %v", sink.last().Point)
	}

	// No further publishes follow once the pending slot is drained.
	time.Sleep(60 * time.Millisecond)
	if sink.count() != 2 {
		t.Errorf("expected no extra publishes, got %d", sink.count())
	}
}

func TestTracker_StopCancelsPendingPublish(t *testing.T) {
	tracker, source, _, _, sink := newTrackerFixture(t, 20*time.Millisecond)

	source.feed(bilbao, 10)
	moved := domain.GeoPoint{Lat: bilbao.Lat + 30*metersLat, Lon: bilbao.Lon}
	source.feed(moved, 10)

	tracker.Stop()
	time.Sleep(50 * time.Millisecond)

	if sink.count() != 1 {
		t.Errorf("expected the pending update dropped on Stop, got %d publishes", sink.count())
	}
	source.mu.Lock()
	unsubbed := source.unsubbed
	source.mu.Unlock()
	if !unsubbed {
		t.Error("expected Stop to unsubscribe from the source")
	}
}

func TestTracker_GeoErrorWarnsOnce(t *testing.T) {
	_, source, _, notifier, sink := newTrackerFixture(t, time.Hour)

	source.fail(domain.GeoPermissionDenied)
	source.fail(domain.GeoTimeout)
	source.fail(domain.GeoUnavailable)

	if notifier.count() != 1 {
		t.Fatalf("expected a single warning toast, got %d", notifier.count())
	}

	// The tracker keeps working after an error: a later fix still lands.
	source.feed(bilbao, 15)
	if sink.count() != 1 {
		t.Errorf("expected updates accepted after a geolocation error, got %d", sink.count())
	}
}
