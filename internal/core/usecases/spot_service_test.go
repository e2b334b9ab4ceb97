package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/usecases"
)

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	sets    int
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.data, key)
	return nil
}

type mockPublisher struct {
	mu        sync.Mutex
	positions int
	refreshes int
	statuses  []string
}

func (p *mockPublisher) PublishPosition(ctx context.Context, sessionID string, pos *domain.LivePosition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions++
	return nil
}

func (p *mockPublisher) PublishSpotRefresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	return nil
}

func (p *mockPublisher) PublishSpotStatus(ctx context.Context, spotID string, status domain.SpotStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, spotID+"="+string(status))
	return nil
}

type mockScheduler struct {
	scheduleFn func(ctx context.Context, spotID string, ttl time.Duration) error
	signalFn   func(ctx context.Context, spotID string, status domain.SpotStatus) error
}

func (m *mockScheduler) ScheduleExpiry(ctx context.Context, spotID string, ttl time.Duration) error {
	if m.scheduleFn != nil {
		return m.scheduleFn(ctx, spotID, ttl)
	}
	return nil
}

func (m *mockScheduler) SignalResolution(ctx context.Context, spotID string, status domain.SpotStatus) error {
	if m.signalFn != nil {
		return m.signalFn(ctx, spotID, status)
	}
	return nil
}

func TestSpotService_CreateSpot(t *testing.T) {
	var created *domain.PublicSpot
	var scheduledID string
	spots := &mockSpotRepo{
		createFn: func(ctx context.Context, spot *domain.PublicSpot) error {
			created = spot
			return nil
		},
	}
	scheduler := &mockScheduler{scheduleFn: func(ctx context.Context, spotID string, ttl time.Duration) error {
		scheduledID = spotID
		return nil
	}}
	publisher := &mockPublisher{}
	svc := usecases.NewSpotService(spots, &mockParkingRepo{}, &mockPlanRepo{}, nil, publisher, scheduler, 30*time.Minute)

	spot, err := svc.CreateSpot(context.Background(), "user-1", bilbao, "Plaza Moyua", 2)
	if err != nil {
		t.Fatalf("CreateSpot: %v", err)
	}
	if created == nil || created.ID == "" {
		t.Fatal("expected the spot persisted with a generated id")
	}
	if spot.Status != domain.SpotActive {
		t.Errorf("status = %q, want active", spot.Status)
	}
	if spot.TotalSpots != 2 || spot.AvailableSpots != 2 {
		t.Errorf("spot counts = %d/%d, want 2/2", spot.AvailableSpots, spot.TotalSpots)
	}
	if !spot.ExpiresAt.After(spot.CreatedAt) {
		t.Error("expected a future expiry")
	}
	if scheduledID != spot.ID {
		t.Errorf("expiry scheduled for %q, want %q", scheduledID, spot.ID)
	}
	if publisher.refreshes != 1 {
		t.Errorf("expected one refresh event, got %d", publisher.refreshes)
	}
}

func TestSpotService_CreateSpot_PlanLimit(t *testing.T) {
	spots := &mockSpotRepo{
		countFn: func(ctx context.Context, ownerUserID string) (int, error) { return 1, nil },
		createFn: func(ctx context.Context, spot *domain.PublicSpot) error {
			t.Error("create must not be reached at the plan limit")
			return nil
		},
	}
	plans := &mockPlanRepo{getPlanFn: func(ctx context.Context, userID string) (*domain.Plan, error) {
		return &domain.Plan{UserID: userID, MaxActiveSpots: 1}, nil
	}}
	svc := usecases.NewSpotService(spots, &mockParkingRepo{}, plans, nil, nil, nil, 0)

	_, err := svc.CreateSpot(context.Background(), "user-1", bilbao, "Plaza Moyua", 1)
	if !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
}

func TestSpotService_CreateSpot_RejectsNonPositiveCount(t *testing.T) {
	svc := usecases.NewSpotService(&mockSpotRepo{}, &mockParkingRepo{}, &mockPlanRepo{}, nil, nil, nil, 0)
	if _, err := svc.CreateSpot(context.Background(), "user-1", bilbao, "x", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSpotService_CreateSpot_ScheduleFailureCompensates(t *testing.T) {
	var deleted string
	spots := &mockSpotRepo{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	scheduler := &mockScheduler{scheduleFn: func(context.Context, string, time.Duration) error {
		return errors.New("temporal down")
	}}
	svc := usecases.NewSpotService(spots, &mockParkingRepo{}, &mockPlanRepo{}, nil, nil, scheduler, 0)

	_, err := svc.CreateSpot(context.Background(), "user-1", bilbao, "Plaza Moyua", 1)
	if err == nil {
		t.Fatal("expected an error when the expiry workflow cannot start")
	}
	if deleted == "" {
		t.Error("expected the orphaned spot deleted")
	}
}

func TestSpotService_ResolveSpot(t *testing.T) {
	var signalled domain.SpotStatus
	scheduler := &mockScheduler{signalFn: func(ctx context.Context, spotID string, status domain.SpotStatus) error {
		signalled = status
		return nil
	}}
	publisher := &mockPublisher{}
	svc := usecases.NewSpotService(&mockSpotRepo{}, &mockParkingRepo{}, &mockPlanRepo{}, nil, publisher, scheduler, 0)

	if err := svc.ResolveSpot(context.Background(), "spot-1", domain.SpotConfirmed); err != nil {
		t.Fatalf("ResolveSpot: %v", err)
	}
	if signalled != domain.SpotConfirmed {
		t.Errorf("workflow signalled with %q, want confirmed", signalled)
	}
	if len(publisher.statuses) != 1 || publisher.statuses[0] != "spot-1=confirmed" {
		t.Errorf("status events = %v", publisher.statuses)
	}

	if err := svc.ResolveSpot(context.Background(), "spot-1", domain.SpotExpired); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expired is not a valid resolution, err = %v", err)
	}
	if err := svc.ResolveSpot(context.Background(), "spot-1", domain.SpotActive); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("active is not a valid resolution, err = %v", err)
	}
}

func TestSpotService_ResolveSpot_WithoutScheduler(t *testing.T) {
	var updated domain.SpotStatus
	spots := &mockSpotRepo{updateStatusFn: func(ctx context.Context, id string, status domain.SpotStatus) error {
		updated = status
		return nil
	}}
	svc := usecases.NewSpotService(spots, &mockParkingRepo{}, &mockPlanRepo{}, nil, nil, nil, 0)

	if err := svc.ResolveSpot(context.Background(), "spot-1", domain.SpotNotFound); err != nil {
		t.Fatalf("ResolveSpot: %v", err)
	}
	if updated != domain.SpotNotFound {
		t.Errorf("status written directly = %q, want not_found", updated)
	}
}

func TestSpotService_MarkersCombinesSources(t *testing.T) {
	spots := &mockSpotRepo{listActiveFn: func(ctx context.Context) ([]domain.PublicSpot, error) {
		return []domain.PublicSpot{{ID: "s1", Location: bilbao, DisplayName: "Abando", AvailableSpots: 1, TotalSpots: 2}}, nil
	}}
	parkings := &mockParkingRepo{listFn: func(ctx context.Context) ([]domain.PrivateParking, error) {
		return []domain.PrivateParking{{ID: "p1", ParkingID: "BIO-01", Location: casco, DisplayName: "Arenal", AvailableSpots: 40, OpeningTime: "00:00", ClosingTime: "00:00"}}, nil
	}}
	svc := usecases.NewSpotService(spots, parkings, &mockPlanRepo{}, nil, nil, nil, 0)

	markers, err := svc.Markers(context.Background())
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if len(markers) != 2 {
		t.Fatalf("len = %d, want 2", len(markers))
	}
	if markers[0].Kind != domain.MarkerPublic || markers[0].ID != "s1" {
		t.Errorf("first marker = %+v, want public s1", markers[0])
	}
	if markers[1].Kind != domain.MarkerPrivate || !markers[1].IsOpen {
		t.Errorf("second marker = %+v, want open private lot", markers[1])
	}
}

func TestSpotService_MarkersCacheReadThrough(t *testing.T) {
	listCalls := 0
	spots := &mockSpotRepo{listActiveFn: func(ctx context.Context) ([]domain.PublicSpot, error) {
		listCalls++
		return []domain.PublicSpot{{ID: "s1", Location: bilbao, AvailableSpots: 1}}, nil
	}}
	cache := newMockCache()
	svc := usecases.NewSpotService(spots, &mockParkingRepo{}, &mockPlanRepo{}, cache, nil, nil, 0)

	ctx := context.Background()
	first, err := svc.Markers(ctx)
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	second, err := svc.Markers(ctx)
	if err != nil {
		t.Fatalf("Markers (cached): %v", err)
	}
	if listCalls != 1 {
		t.Errorf("expected the second call served from cache, repo hit %d times", listCalls)
	}
	if len(first) != len(second) || second[0].ID != "s1" {
		t.Errorf("cached snapshot differs: %v vs %v", first, second)
	}
	if cache.sets != 1 {
		t.Errorf("expected one cache fill, got %d", cache.sets)
	}
}

func TestSpotService_CreateInvalidatesMarkerCache(t *testing.T) {
	cache := newMockCache()
	stale, _ := json.Marshal([]domain.SpotMarker{})
	_ = cache.Set(context.Background(), "spots:markers", stale, 15)

	svc := usecases.NewSpotService(&mockSpotRepo{}, &mockParkingRepo{}, &mockPlanRepo{}, cache, nil, nil, 0)
	if _, err := svc.CreateSpot(context.Background(), "user-1", bilbao, "Plaza Moyua", 1); err != nil {
		t.Fatalf("CreateSpot: %v", err)
	}
	if cache.deletes != 1 {
		t.Errorf("expected the marker snapshot invalidated, got %d deletes", cache.deletes)
	}
}

func TestSpotService_NearbyMarkersClampsLimit(t *testing.T) {
	var gotLimit int
	spots := &mockSpotRepo{findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PublicSpot, error) {
		gotLimit = limit
		return nil, nil
	}}
	svc := usecases.NewSpotService(spots, &mockParkingRepo{}, &mockPlanRepo{}, nil, nil, nil, 0)

	if _, err := svc.NearbyMarkers(context.Background(), bilbao.Lat, bilbao.Lon, 500, 10_000); err != nil {
		t.Fatalf("NearbyMarkers: %v", err)
	}
	if gotLimit != 100 {
		t.Errorf("limit = %d, want clamped to 100", gotLimit)
	}
}

func TestSpotService_ImportParkings(t *testing.T) {
	var upserted int
	parkings := &mockParkingRepo{upsertBatch: func(ctx context.Context, batch []domain.PrivateParking) error {
		upserted = len(batch)
		return nil
	}}
	publisher := &mockPublisher{}
	svc := usecases.NewSpotService(&mockSpotRepo{}, parkings, &mockPlanRepo{}, nil, publisher, nil, 0)

	batch := []domain.PrivateParking{{ParkingID: "BIO-01", Location: casco, DisplayName: "Arenal"}}
	if err := svc.ImportParkings(context.Background(), batch); err != nil {
		t.Fatalf("ImportParkings: %v", err)
	}
	if upserted != 1 {
		t.Errorf("upserted = %d, want 1", upserted)
	}
	if publisher.refreshes != 1 {
		t.Errorf("expected a refresh event after import, got %d", publisher.refreshes)
	}

	// An empty batch is a no-op.
	if err := svc.ImportParkings(context.Background(), nil); err != nil {
		t.Fatalf("empty import: %v", err)
	}
	if publisher.refreshes != 1 {
		t.Errorf("empty import must not publish, got %d", publisher.refreshes)
	}
}
