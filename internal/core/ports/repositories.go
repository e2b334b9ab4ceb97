package ports

import (
	"context"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// SpotRepository persists public spots.
type SpotRepository interface {
	Create(ctx context.Context, spot *domain.PublicSpot) error
	GetByID(ctx context.Context, id string) (*domain.PublicSpot, error)
	// ListActive returns spots with status "active" that have not expired.
	ListActive(ctx context.Context) ([]domain.PublicSpot, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.PublicSpot, error)
	UpdateStatus(ctx context.Context, id string, status domain.SpotStatus) error
	CountActiveByOwner(ctx context.Context, ownerUserID string) (int, error)
	// Delete removes a spot record (saga compensation after a failed create flow).
	Delete(ctx context.Context, id string) error
}

// ParkingRepository persists private parking lots.
type ParkingRepository interface {
	Upsert(ctx context.Context, parking *domain.PrivateParking) error
	UpsertBatch(ctx context.Context, parkings []domain.PrivateParking) error
	GetByID(ctx context.Context, id string) (*domain.PrivateParking, error)
	List(ctx context.Context) ([]domain.PrivateParking, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.PrivateParking, error)
}

// PlanRepository reads a user's plan limits. Entitlement arithmetic
// beyond the simple limit lives in the billing system, not here.
type PlanRepository interface {
	GetPlan(ctx context.Context, userID string) (*domain.Plan, error)
}
