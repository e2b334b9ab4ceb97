package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	natsadapter "github.com/samirrijal/aparka/internal/adapters/nats"
	"github.com/samirrijal/aparka/internal/adapters/postgres"
	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/pkg/config"
)

// parkingEntry mirrors the municipal open-data export format.
type parkingEntry struct {
	ParkingID      string  `json:"parking_id"`
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	AvailableSpots int     `json:"available_spots"`
	OpeningTime    string  `json:"opening_time"`
	ClosingTime    string  `json:"closing_time"`
	Phone          string  `json:"phone,omitempty"`
}

func main() {
	cfg, err := config.Load("aparka-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	path := "parkings.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}

	var entries []parkingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Fatalf("parse %s: %v", path, err)
	}
	if len(entries) == 0 {
		log.Fatalf("%s contains no parkings", path)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	parkings := make([]domain.PrivateParking, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		if e.ParkingID == "" || e.Lat < -90 || e.Lat > 90 || e.Lon < -180 || e.Lon > 180 {
			skipped++
			continue
		}
		parkings = append(parkings, domain.PrivateParking{
			ParkingID:      e.ParkingID,
			Location:       domain.GeoPoint{Lat: e.Lat, Lon: e.Lon},
			DisplayName:    e.Name,
			AvailableSpots: e.AvailableSpots,
			OpeningTime:    e.OpeningTime,
			ClosingTime:    e.ClosingTime,
			Phone:          e.Phone,
		})
	}

	repo := postgres.NewParkingRepo(db)
	if err := repo.UpsertBatch(ctx, parkings); err != nil {
		log.Fatalf("upsert: %v", err)
	}
	log.Printf("imported %d parkings (%d skipped)", len(parkings), skipped)

	// Nudge open sessions to refresh now instead of on the next tick
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Printf("WARNING: nats unavailable, sessions will refresh on their own tick: %v", err)
		return
	}
	defer publisher.Close()
	if err := publisher.PublishSpotRefresh(ctx); err != nil {
		log.Printf("WARNING: refresh publish failed: %v", err)
	}
}
