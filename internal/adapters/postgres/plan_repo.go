package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// PlanRepo implements ports.PlanRepository with pgx. Users without a row
// fall back to the free plan.
type PlanRepo struct {
	db *DB
}

const freePlanMaxActiveSpots = 1

// NewPlanRepo creates a new PlanRepo.
func NewPlanRepo(db *DB) *PlanRepo {
	return &PlanRepo{db: db}
}

// GetPlan returns the user's plan limits.
func (r *PlanRepo) GetPlan(ctx context.Context, userID string) (*domain.Plan, error) {
	var p domain.Plan
	err := r.db.Pool.QueryRow(ctx, `
		SELECT user_id, max_active_spots FROM user_plans WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.MaxActiveSpots)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.Plan{UserID: userID, MaxActiveSpots: freePlanMaxActiveSpots}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
