package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/aparka/internal/adapters/http"
	natsadapter "github.com/samirrijal/aparka/internal/adapters/nats"
	"github.com/samirrijal/aparka/internal/adapters/postgres"
	"github.com/samirrijal/aparka/internal/adapters/routing"
	temporaladapter "github.com/samirrijal/aparka/internal/adapters/temporal"
	"github.com/samirrijal/aparka/internal/adapters/valkey"
	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/core/usecases"
	"github.com/samirrijal/aparka/internal/pkg/config"
	"github.com/samirrijal/aparka/internal/pkg/logging"
	"github.com/samirrijal/aparka/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("aparka-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer publisher.Close()
	}

	// Raw NATS connection for readiness checks and the simulator relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats conn unavailable", "error", err)
	}

	// Temporal (spot lifecycle)
	var lifecycle ports.LifecycleScheduler
	scheduler, err := temporaladapter.New(cfg.Temporal.HostPort, cfg.Temporal.Namespace, cfg.Temporal.TaskQueue)
	if err != nil {
		slog.Warn("temporal unavailable, spots will not auto-expire", "error", err)
	} else {
		lifecycle = scheduler
		defer scheduler.Close()
	}

	// Repos
	spotRepo := postgres.NewSpotRepo(db)
	parkingRepo := postgres.NewParkingRepo(db)
	planRepo := postgres.NewPlanRepo(db)

	// Routing provider
	router := routing.New(cfg.Routing.BaseURL, cfg.Routing.APIKey, cfg.Routing.Profile,
		time.Duration(cfg.Routing.TimeoutSeconds)*time.Second)

	// Use cases
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}
	var pubSvc ports.EventPublisher
	if publisher != nil {
		pubSvc = publisher
	}
	spotSvc := usecases.NewSpotService(spotRepo, parkingRepo, planRepo, cacheSvc, pubSvc, lifecycle,
		time.Duration(cfg.Engine.SpotTTLMinutes)*time.Minute)

	deps := &http.Dependencies{
		Spots:     spotSvc,
		Routing:   router,
		Publisher: pubSvc,
		Engine: usecases.NavigationConfig{
			RefreshInterval:            time.Duration(cfg.Engine.RefreshIntervalSeconds) * time.Second,
			UserSelectionRadiusMeters:  cfg.Engine.UserSelectionRadiusMeters,
			AdminSelectionRadiusMeters: cfg.Engine.AdminSelectionRadiusMeters,
			Tracker: usecases.TrackerConfig{
				MinMoveMeters: cfg.Engine.MinMoveMeters,
				Debounce:      time.Duration(cfg.Engine.DebounceMillis) * time.Millisecond,
			},
			Route: usecases.RouteConfig{
				InstructionRadiusMeters: cfg.Engine.InstructionRadiusMeters,
				ArrivalRadiusMeters:     cfg.Engine.ArrivalRadiusMeters,
				RequestTimeout:          time.Duration(cfg.Routing.TimeoutSeconds) * time.Second,
			},
		},
		NATS:  natsConn,
		DB:    db,
		Cache: cacheSvc,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Aparka API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.aparka.eus",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-User-ID, X-API-Role",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Push broker refresh events into open sessions; they poll regardless,
	// this just shortens the window after an import or lifecycle change.
	subscriber, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable, sessions rely on polling", "error", err)
	} else {
		defer subscriber.Close()
		if err := subscriber.SubscribeSpotRefresh(ctx, func(ctx context.Context) error {
			http.BroadcastRefresh(ctx)
			return nil
		}); err != nil {
			slog.Warn("spot refresh subscription failed", "error", err)
		}
		if err := subscriber.SubscribeSpotStatus(ctx, func(ctx context.Context, spotID string, status domain.SpotStatus) error {
			slog.Info("spot status changed", "spot", spotID, "status", status)
			http.BroadcastRefresh(ctx)
			return nil
		}); err != nil {
			slog.Warn("spot status subscription failed", "error", err)
		}
	}

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
