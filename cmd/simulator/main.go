package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/aparka/internal/adapters/nats"
	"github.com/samirrijal/aparka/internal/adapters/routing"
	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/pkg/config"
	"github.com/samirrijal/aparka/internal/pkg/geospatial"
)

// The simulator drives a fake vehicle along a real route and publishes
// its position to NATS, so a navigation session can be exercised end to
// end without a device. Sessions subscribe via the NATS geolocation
// source.

func main() {
	var (
		fromLat = flag.Float64("from-lat", 43.2630, "origin latitude")
		fromLon = flag.Float64("from-lon", -2.9350, "origin longitude")
		toLat   = flag.Float64("to-lat", 43.2569, "destination latitude")
		toLon   = flag.Float64("to-lon", -2.9234, "destination longitude")
		speed   = flag.Float64("speed", 8.0, "simulated speed in m/s")
		subject = flag.String("subject", "parking.position.sim", "NATS subject to publish to")
		tick    = flag.Duration("tick", time.Second, "publish interval")
	)
	flag.Parse()

	cfg, err := config.Load("aparka-simulator")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	client := routing.New(cfg.Routing.BaseURL, cfg.Routing.APIKey, cfg.Routing.Profile,
		time.Duration(cfg.Routing.TimeoutSeconds)*time.Second)

	summary, err := client.Route(ctx,
		domain.GeoPoint{Lat: *fromLat, Lon: *fromLon},
		domain.GeoPoint{Lat: *toLat, Lon: *toLon})
	if err != nil {
		log.Fatalf("route: %v", err)
	}

	path := summary.Geometry.Coordinates
	log.Printf("simulating %.0f m over %d points at %.1f m/s → %s",
		summary.DistanceMeters, len(path), *speed, *subject)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*tick)
	defer ticker.Stop()

	segment := 0
	pos := path[0]
	for {
		select {
		case <-ticker.C:
			if segment >= len(path)-1 {
				log.Println("destination reached")
				return
			}
			// Advance along the current segment; hop to the next when
			// the remaining distance is shorter than one tick's travel.
			travel := *speed * tick.Seconds()
			for travel > 0 && segment < len(path)-1 {
				next := path[segment+1]
				remaining := geospatial.Distance(pos, next)
				if remaining <= travel {
					travel -= remaining
					pos = next
					segment++
					continue
				}
				frac := travel / remaining
				pos = domain.GeoPoint{
					Lat: pos.Lat + (next.Lat-pos.Lat)*frac,
					Lon: pos.Lon + (next.Lon-pos.Lon)*frac,
				}
				travel = 0
			}

			update := domain.LivePosition{Point: pos, AccuracyMeters: 5, Time: time.Now()}
			data, err := json.Marshal(update)
			if err != nil {
				log.Printf("marshal: %v", err)
				continue
			}
			if err := nc.Publish(*subject, data); err != nil {
				log.Printf("publish: %v", err)
			}

		case sig := <-quit:
			log.Printf("received signal %v, stopping simulator", sig)
			return
		}
	}
}
