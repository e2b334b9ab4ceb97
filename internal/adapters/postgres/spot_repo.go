package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// SpotRepo implements ports.SpotRepository with pgx.
type SpotRepo struct {
	db *DB
}

// NewSpotRepo creates a new SpotRepo.
func NewSpotRepo(db *DB) *SpotRepo {
	return &SpotRepo{db: db}
}

// Create inserts a new public spot.
func (r *SpotRepo) Create(ctx context.Context, s *domain.PublicSpot) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO public_spots (id, location, display_name, available_spots, total_spots,
		                          expires_at, status, owner_user_id, created_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.Location.Lon, s.Location.Lat, s.DisplayName, s.AvailableSpots, s.TotalSpots,
		s.ExpiresAt, s.Status, s.OwnerUserID, s.CreatedAt)
	return err
}

// GetByID returns a spot by UUID.
func (r *SpotRepo) GetByID(ctx context.Context, id string) (*domain.PublicSpot, error) {
	var s domain.PublicSpot
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       display_name, available_spots, total_spots, expires_at, status, owner_user_id, created_at
		FROM public_spots WHERE id = $1
	`, id).Scan(
		&s.ID, &s.Location.Lat, &s.Location.Lon,
		&s.DisplayName, &s.AvailableSpots, &s.TotalSpots,
		&s.ExpiresAt, &s.Status, &s.OwnerUserID, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActive returns spots with status "active" that have not expired.
func (r *SpotRepo) ListActive(ctx context.Context) ([]domain.PublicSpot, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       display_name, available_spots, total_spots, expires_at, status, owner_user_id, created_at
		FROM public_spots
		WHERE status = 'active' AND expires_at > now()
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSpots(rows)
}

// FindNearby returns active spots within radiusMeters using PostGIS ST_DWithin.
func (r *SpotRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.PublicSpot, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       display_name, available_spots, total_spots, expires_at, status, owner_user_id, created_at
		FROM public_spots
		WHERE status = 'active' AND expires_at > now()
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSpots(rows)
}

// UpdateStatus transitions a spot's lifecycle status.
func (r *SpotRepo) UpdateStatus(ctx context.Context, id string, status domain.SpotStatus) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE public_spots SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("spot %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountActiveByOwner counts the owner's live spots for plan enforcement.
func (r *SpotRepo) CountActiveByOwner(ctx context.Context, ownerUserID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM public_spots
		WHERE owner_user_id = $1 AND status = 'active' AND expires_at > now()
	`, ownerUserID).Scan(&n)
	return n, err
}

// Delete removes a spot record (saga compensation after a failed create flow).
func (r *SpotRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM public_spots WHERE id = $1`, id)
	return err
}

func scanSpots(rows pgx.Rows) ([]domain.PublicSpot, error) {
	var spots []domain.PublicSpot
	for rows.Next() {
		var s domain.PublicSpot
		if err := rows.Scan(
			&s.ID, &s.Location.Lat, &s.Location.Lon,
			&s.DisplayName, &s.AvailableSpots, &s.TotalSpots,
			&s.ExpiresAt, &s.Status, &s.OwnerUserID, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		spots = append(spots, s)
	}
	return spots, rows.Err()
}
