package usecases_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
)

// --- Fake map surface ---

// fakeSurface records every render operation as "op:id" strings.
type fakeSurface struct {
	mu  sync.Mutex
	ops []string

	markers map[string]domain.GeoPoint
	icons   map[string]string
	circles map[string]float64
	lines   map[string]int

	clickFns []func(domain.GeoPoint)
	tapFns   []func(string)
	dragFns  []func(string, domain.GeoPoint)
	centers  []domain.GeoPoint
	fitCalls int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		markers: make(map[string]domain.GeoPoint),
		icons:   make(map[string]string),
		circles: make(map[string]float64),
		lines:   make(map[string]int),
	}
}

func (s *fakeSurface) record(op, id string) {
	s.ops = append(s.ops, op+":"+id)
}

func (s *fakeSurface) AddMarker(id string, at domain.GeoPoint, opts ports.MarkerOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("add_marker", id)
	s.markers[id] = at
	s.icons[id] = opts.Icon
}

func (s *fakeSurface) MoveMarker(id string, to domain.GeoPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("move_marker", id)
	s.markers[id] = to
}

func (s *fakeSurface) SetMarkerIcon(id, icon string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("marker_icon", id)
	s.icons[id] = icon
}

func (s *fakeSurface) RemoveMarker(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("remove_marker", id)
	delete(s.markers, id)
	delete(s.icons, id)
}

func (s *fakeSurface) AddCircle(id string, center domain.GeoPoint, radiusMeters float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("add_circle", id)
	s.circles[id] = radiusMeters
}

func (s *fakeSurface) RemoveCircle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("remove_circle", id)
	delete(s.circles, id)
}

func (s *fakeSurface) DrawLine(id string, line domain.GeoLineString) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("draw_line", id)
	s.lines[id] = len(line.Coordinates)
}

func (s *fakeSurface) RemoveLine(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("remove_line", id)
	delete(s.lines, id)
}

func (s *fakeSurface) SetCenter(at domain.GeoPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("set_center", "")
	s.centers = append(s.centers, at)
}

func (s *fakeSurface) FitBounds(bounds domain.Bounds, paddingMeters float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("fit_bounds", "")
	s.fitCalls++
}

func (s *fakeSurface) OnClick(fn func(at domain.GeoPoint)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clickFns = append(s.clickFns, fn)
	return func() {}
}

func (s *fakeSurface) OnMarkerClick(fn func(markerID string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tapFns = append(s.tapFns, fn)
	return func() {}
}

func (s *fakeSurface) OnMarkerDragEnd(fn func(markerID string, to domain.GeoPoint)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragFns = append(s.dragFns, fn)
	return func() {}
}

func (s *fakeSurface) countOps(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range s.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

func (s *fakeSurface) markerAt(id string) (domain.GeoPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.markers[id]
	return p, ok
}

func (s *fakeSurface) hasLine(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lines[id]
	return ok
}

func (s *fakeSurface) hasCircle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.circles[id]
	return ok
}

func (s *fakeSurface) iconOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.icons[id]
}

// --- Fake notifier ---

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []string
}

func (n *fakeNotifier) Toast(level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, level+": "+message)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.toasts)
}

// --- Fake geolocation source ---

type fakeGeoSource struct {
	mu       sync.Mutex
	onUpdate func(domain.GeoPoint, float64)
	onError  func(domain.GeoErrorReason)
	subErr   error
	unsubbed bool
}

func (g *fakeGeoSource) Subscribe(
	onUpdate func(point domain.GeoPoint, accuracyMeters float64),
	onError func(reason domain.GeoErrorReason),
) (func(), error) {
	if g.subErr != nil {
		return nil, g.subErr
	}
	g.mu.Lock()
	g.onUpdate = onUpdate
	g.onError = onError
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.unsubbed = true
		g.mu.Unlock()
	}, nil
}

func (g *fakeGeoSource) feed(p domain.GeoPoint, accuracy float64) {
	g.mu.Lock()
	fn := g.onUpdate
	g.mu.Unlock()
	if fn != nil {
		fn(p, accuracy)
	}
}

func (g *fakeGeoSource) fail(reason domain.GeoErrorReason) {
	g.mu.Lock()
	fn := g.onError
	g.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

// --- Fake routing provider ---

type fakeRouter struct {
	routeFn func(ctx context.Context, origin, destination domain.GeoPoint) (*domain.RouteSummary, error)
}

func (r *fakeRouter) Route(ctx context.Context, origin, destination domain.GeoPoint) (*domain.RouteSummary, error) {
	if r.routeFn != nil {
		return r.routeFn(ctx, origin, destination)
	}
	return &domain.RouteSummary{
		DistanceMeters:  1200,
		DurationSeconds: 300,
		Geometry: domain.GeoLineString{Coordinates: []domain.GeoPoint{
			origin,
			{Lat: (origin.Lat + destination.Lat) / 2, Lon: (origin.Lon + destination.Lon) / 2},
			destination,
		}},
		Instructions: []domain.RouteInstruction{
			{Text: "Head east", DistanceMeters: 600, Anchor: &domain.GeoPoint{Lat: origin.Lat, Lon: origin.Lon}},
			{Text: "Arrive", DistanceMeters: 0, Anchor: &destination},
		},
	}, nil
}

// --- Mock repositories ---

type mockSpotRepo struct {
	createFn       func(ctx context.Context, spot *domain.PublicSpot) error
	getByIDFn      func(ctx context.Context, id string) (*domain.PublicSpot, error)
	listActiveFn   func(ctx context.Context) ([]domain.PublicSpot, error)
	findNearbyFn   func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PublicSpot, error)
	updateStatusFn func(ctx context.Context, id string, status domain.SpotStatus) error
	countFn        func(ctx context.Context, ownerUserID string) (int, error)
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockSpotRepo) Create(ctx context.Context, spot *domain.PublicSpot) error {
	if m.createFn != nil {
		return m.createFn(ctx, spot)
	}
	return nil
}

func (m *mockSpotRepo) GetByID(ctx context.Context, id string) (*domain.PublicSpot, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockSpotRepo) ListActive(ctx context.Context) ([]domain.PublicSpot, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockSpotRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PublicSpot, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

func (m *mockSpotRepo) UpdateStatus(ctx context.Context, id string, status domain.SpotStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockSpotRepo) CountActiveByOwner(ctx context.Context, ownerUserID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, ownerUserID)
	}
	return 0, nil
}

func (m *mockSpotRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockParkingRepo struct {
	listFn       func(ctx context.Context) ([]domain.PrivateParking, error)
	getByIDFn    func(ctx context.Context, id string) (*domain.PrivateParking, error)
	findNearbyFn func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PrivateParking, error)
	upsertBatch  func(ctx context.Context, parkings []domain.PrivateParking) error
}

func (m *mockParkingRepo) Upsert(ctx context.Context, parking *domain.PrivateParking) error {
	return nil
}

func (m *mockParkingRepo) UpsertBatch(ctx context.Context, parkings []domain.PrivateParking) error {
	if m.upsertBatch != nil {
		return m.upsertBatch(ctx, parkings)
	}
	return nil
}

func (m *mockParkingRepo) GetByID(ctx context.Context, id string) (*domain.PrivateParking, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockParkingRepo) List(ctx context.Context) ([]domain.PrivateParking, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockParkingRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PrivateParking, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

type mockPlanRepo struct {
	getPlanFn func(ctx context.Context, userID string) (*domain.Plan, error)
}

func (m *mockPlanRepo) GetPlan(ctx context.Context, userID string) (*domain.Plan, error) {
	if m.getPlanFn != nil {
		return m.getPlanFn(ctx, userID)
	}
	return &domain.Plan{UserID: userID, MaxActiveSpots: 1}, nil
}

// --- Helpers ---

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
