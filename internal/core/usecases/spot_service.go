package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
)

const markersCacheKey = "spots:markers"

// SpotService handles spot and parking-lot business logic: creation with
// plan limits, the combined marker snapshot, and status resolution.
type SpotService struct {
	spots     ports.SpotRepository
	parkings  ports.ParkingRepository
	plans     ports.PlanRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	lifecycle ports.LifecycleScheduler

	spotTTL time.Duration
}

// NewSpotService creates a new SpotService. cache, publisher and
// lifecycle may be nil; the service degrades gracefully without them.
func NewSpotService(
	spots ports.SpotRepository,
	parkings ports.ParkingRepository,
	plans ports.PlanRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	lifecycle ports.LifecycleScheduler,
	spotTTL time.Duration,
) *SpotService {
	if spotTTL <= 0 {
		spotTTL = 30 * time.Minute
	}
	return &SpotService{
		spots:     spots,
		parkings:  parkings,
		plans:     plans,
		cache:     cache,
		publisher: publisher,
		lifecycle: lifecycle,
		spotTTL:   spotTTL,
	}
}

// CreateSpot persists a new public spot for ownerUserID at location,
// enforcing the owner's plan limit, and schedules its expiry. Returns
// domain.ErrLimitExceeded when the owner already has the maximum number
// of active spots.
func (s *SpotService) CreateSpot(ctx context.Context, ownerUserID string, location domain.GeoPoint, displayName string, availableSpots int) (*domain.PublicSpot, error) {
	if availableSpots <= 0 {
		return nil, fmt.Errorf("%w: available spots must be positive", domain.ErrValidation)
	}

	plan, err := s.plans.GetPlan(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("load plan for %s: %w", ownerUserID, err)
	}
	active, err := s.spots.CountActiveByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("count active spots: %w", err)
	}
	if active >= plan.MaxActiveSpots {
		return nil, fmt.Errorf("%w: plan allows %d active spots", domain.ErrLimitExceeded, plan.MaxActiveSpots)
	}

	now := time.Now().UTC()
	spot := &domain.PublicSpot{
		ID:             uuid.NewString(),
		Location:       location,
		DisplayName:    displayName,
		AvailableSpots: availableSpots,
		TotalSpots:     availableSpots,
		ExpiresAt:      now.Add(s.spotTTL),
		Status:         domain.SpotActive,
		OwnerUserID:    ownerUserID,
		CreatedAt:      now,
	}
	if err := s.spots.Create(ctx, spot); err != nil {
		return nil, fmt.Errorf("create spot: %w", err)
	}

	if s.lifecycle != nil {
		if err := s.lifecycle.ScheduleExpiry(ctx, spot.ID, s.spotTTL); err != nil {
			// Compensate: a spot without an expiry workflow would linger forever.
			_ = s.spots.Delete(ctx, spot.ID)
			return nil, fmt.Errorf("schedule expiry: %w", err)
		}
	}

	s.invalidateMarkers(ctx)
	if s.publisher != nil {
		_ = s.publisher.PublishSpotRefresh(ctx)
	}
	return spot, nil
}

// GetSpot returns a single public spot.
func (s *SpotService) GetSpot(ctx context.Context, id string) (*domain.PublicSpot, error) {
	spot, err := s.spots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return spot, nil
}

// GetParking returns a single private parking lot.
func (s *SpotService) GetParking(ctx context.Context, id string) (*domain.PrivateParking, error) {
	return s.parkings.GetByID(ctx, id)
}

// ResolveSpot records the outcome of an arrival confirmation: the driver
// either found the spot (confirmed) or did not (not_found). The expiry
// workflow is signalled so its timer stops racing the resolution.
func (s *SpotService) ResolveSpot(ctx context.Context, id string, status domain.SpotStatus) error {
	if status != domain.SpotConfirmed && status != domain.SpotNotFound {
		return fmt.Errorf("%w: invalid resolution %q", domain.ErrValidation, status)
	}
	if s.lifecycle != nil {
		if err := s.lifecycle.SignalResolution(ctx, id, status); err != nil {
			return fmt.Errorf("signal resolution: %w", err)
		}
	} else {
		if err := s.spots.UpdateStatus(ctx, id, status); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
	}

	s.invalidateMarkers(ctx)
	if s.publisher != nil {
		_ = s.publisher.PublishSpotStatus(ctx, id, status)
		_ = s.publisher.PublishSpotRefresh(ctx)
	}
	return nil
}

// ExpireSpot marks a spot expired. Called from the expiry workflow.
func (s *SpotService) ExpireSpot(ctx context.Context, id string) error {
	if err := s.spots.UpdateStatus(ctx, id, domain.SpotExpired); err != nil {
		return fmt.Errorf("expire spot: %w", err)
	}
	s.invalidateMarkers(ctx)
	if s.publisher != nil {
		_ = s.publisher.PublishSpotStatus(ctx, id, domain.SpotExpired)
		_ = s.publisher.PublishSpotRefresh(ctx)
	}
	return nil
}

// Markers returns the combined render snapshot: active public spots plus
// private parking lots, as one marker list. Cached briefly so the 30 s
// refresh tick across many sessions doesn't hammer the database.
func (s *SpotService) Markers(ctx context.Context) ([]domain.SpotMarker, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, markersCacheKey); err == nil {
			var markers []domain.SpotMarker
			if err := json.Unmarshal(data, &markers); err == nil {
				return markers, nil
			}
		}
	}

	spots, err := s.spots.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active spots: %w", err)
	}
	parkings, err := s.parkings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parkings: %w", err)
	}

	markers := buildMarkers(spots, parkings, time.Now())

	// Cache for 15 seconds (snapshot churns with every create/resolve)
	if s.cache != nil {
		if data, err := json.Marshal(markers); err == nil {
			_ = s.cache.Set(ctx, markersCacheKey, data, 15)
		}
	}
	return markers, nil
}

// NearbyMarkers returns the marker snapshot limited to a radius around a
// point, for the REST catalog endpoints.
func (s *SpotService) NearbyMarkers(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.SpotMarker, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	spots, err := s.spots.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("nearby spots: %w", err)
	}
	parkings, err := s.parkings.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("nearby parkings: %w", err)
	}
	return buildMarkers(spots, parkings, time.Now()), nil
}

// ImportParkings upserts a batch of private parking lots, typically from
// the municipal open-data importer.
func (s *SpotService) ImportParkings(ctx context.Context, parkings []domain.PrivateParking) error {
	if len(parkings) == 0 {
		return nil
	}
	if err := s.parkings.UpsertBatch(ctx, parkings); err != nil {
		return fmt.Errorf("import parkings: %w", err)
	}
	s.invalidateMarkers(ctx)
	if s.publisher != nil {
		_ = s.publisher.PublishSpotRefresh(ctx)
	}
	return nil
}

func (s *SpotService) invalidateMarkers(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, markersCacheKey)
	}
}

func buildMarkers(spots []domain.PublicSpot, parkings []domain.PrivateParking, now time.Time) []domain.SpotMarker {
	markers := make([]domain.SpotMarker, 0, len(spots)+len(parkings))
	for _, sp := range spots {
		markers = append(markers, domain.SpotMarker{
			Kind:           domain.MarkerPublic,
			ID:             sp.ID,
			Location:       sp.Location,
			DisplayName:    sp.DisplayName,
			AvailableSpots: sp.AvailableSpots,
			TotalSpots:     sp.TotalSpots,
		})
	}
	for _, p := range parkings {
		markers = append(markers, domain.SpotMarker{
			Kind:           domain.MarkerPrivate,
			ID:             p.ID,
			Location:       p.Location,
			DisplayName:    p.DisplayName,
			AvailableSpots: p.AvailableSpots,
			IsOpen:         p.IsOpen(now),
		})
	}
	return markers
}
