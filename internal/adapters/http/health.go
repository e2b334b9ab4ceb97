package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		})
	}
}

// ReadyHandler probes the backing services. The database gates
// readiness; NATS and the cache are reported but optional, matching how
// main wires them (warn and continue).
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{
			"database": checkDB(ctx, deps),
			"nats":     checkNATS(deps),
			"cache":    checkCache(ctx, deps),
		}

		status, code := "ready", fiber.StatusOK
		if checks["database"] != "ok" {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

func checkDB(ctx context.Context, deps *Dependencies) string {
	if deps.DB == nil {
		return "not configured"
	}
	if err := deps.DB.Pool.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func checkNATS(deps *Dependencies) string {
	if deps.NATS == nil {
		return "not configured"
	}
	if !deps.NATS.IsConnected() {
		return "disconnected"
	}
	return "ok"
}

func checkCache(ctx context.Context, deps *Dependencies) string {
	if deps.Cache == nil {
		return "not configured"
	}
	// A missing key is a healthy answer.
	if _, err := deps.Cache.Get(ctx, "__ready__"); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "error: " + err.Error()
	}
	return "ok"
}
