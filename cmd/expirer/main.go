package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/aparka/internal/adapters/nats"
	"github.com/samirrijal/aparka/internal/adapters/postgres"
	"github.com/samirrijal/aparka/internal/adapters/valkey"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/pkg/config"
	"github.com/samirrijal/aparka/internal/pkg/logging"
	"github.com/samirrijal/aparka/internal/workflows"
)

func main() {
	cfg, err := config.Load("aparka-expirer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx := context.Background()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache (optional — only used to invalidate the marker snapshot)
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS
	var pubSvc ports.EventPublisher
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		pubSvc = publisher
		defer publisher.Close()
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.SpotLifecycleWorkflow)
	w.RegisterActivity(&workflows.SpotLifecycleActivities{
		Spots:     postgres.NewSpotRepo(db),
		Publisher: pubSvc,
		Cache:     cacheSvc,
	})

	slog.Info("expirer worker started", "taskQueue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
