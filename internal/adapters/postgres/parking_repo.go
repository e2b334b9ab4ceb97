package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// ParkingRepo implements ports.ParkingRepository with pgx.
type ParkingRepo struct {
	db *DB
}

// NewParkingRepo creates a new ParkingRepo.
func NewParkingRepo(db *DB) *ParkingRepo {
	return &ParkingRepo{db: db}
}

const parkingUpsert = `
	INSERT INTO private_parkings (parking_id, location, display_name, available_spots,
	                              opening_time, closing_time, phone)
	VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5, $6, $7)
	ON CONFLICT (parking_id) DO UPDATE
	SET location = EXCLUDED.location, display_name = EXCLUDED.display_name,
	    available_spots = EXCLUDED.available_spots,
	    opening_time = EXCLUDED.opening_time, closing_time = EXCLUDED.closing_time,
	    phone = EXCLUDED.phone
`

// Upsert inserts or updates a single parking lot, keyed by its external id.
func (r *ParkingRepo) Upsert(ctx context.Context, p *domain.PrivateParking) error {
	_, err := r.db.Pool.Exec(ctx, parkingUpsert,
		p.ParkingID, p.Location.Lon, p.Location.Lat, p.DisplayName,
		p.AvailableSpots, p.OpeningTime, p.ClosingTime, p.Phone)
	return err
}

// UpsertBatch inserts many parking lots using pgx.Batch.
func (r *ParkingRepo) UpsertBatch(ctx context.Context, parkings []domain.PrivateParking) error {
	batch := &pgx.Batch{}
	for _, p := range parkings {
		batch.Queue(parkingUpsert,
			p.ParkingID, p.Location.Lon, p.Location.Lat, p.DisplayName,
			p.AvailableSpots, p.OpeningTime, p.ClosingTime, p.Phone)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range parkings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a parking lot by UUID.
func (r *ParkingRepo) GetByID(ctx context.Context, id string) (*domain.PrivateParking, error) {
	var p domain.PrivateParking
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, parking_id,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       display_name, available_spots, opening_time, closing_time, COALESCE(phone, ''), created_at
		FROM private_parkings WHERE id = $1
	`, id).Scan(
		&p.ID, &p.ParkingID, &p.Location.Lat, &p.Location.Lon,
		&p.DisplayName, &p.AvailableSpots, &p.OpeningTime, &p.ClosingTime, &p.Phone, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every parking lot.
func (r *ParkingRepo) List(ctx context.Context) ([]domain.PrivateParking, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, parking_id,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       display_name, available_spots, opening_time, closing_time, COALESCE(phone, ''), created_at
		FROM private_parkings
		ORDER BY display_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanParkings(rows)
}

// FindNearby returns parking lots within radiusMeters using PostGIS ST_DWithin.
func (r *ParkingRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.PrivateParking, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, parking_id,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       display_name, available_spots, opening_time, closing_time, COALESCE(phone, ''), created_at
		FROM private_parkings
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanParkings(rows)
}

func scanParkings(rows pgx.Rows) ([]domain.PrivateParking, error) {
	var parkings []domain.PrivateParking
	for rows.Next() {
		var p domain.PrivateParking
		if err := rows.Scan(
			&p.ID, &p.ParkingID, &p.Location.Lat, &p.Location.Lon,
			&p.DisplayName, &p.AvailableSpots, &p.OpeningTime, &p.ClosingTime, &p.Phone, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		parkings = append(parkings, p)
	}
	return parkings, rows.Err()
}
