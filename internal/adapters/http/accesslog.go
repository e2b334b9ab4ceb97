package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// AccessLogMiddleware emits one structured log line per request.
// Health and metrics probes are skipped to keep the log readable.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/v1/health" || path == "/v1/ready" || path == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()

		logger := slog.With(
			"method", c.Method(),
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes_out", len(c.Response().Body()),
			"request_id", c.Get(fiber.HeaderXRequestID, "unknown"),
		)

		switch {
		case err != nil:
			logger.Error("request failed", "error", err)
		case status >= 500:
			logger.Error("request")
		case status >= 400:
			logger.Warn("request")
		default:
			logger.Info("request")
		}
		return err
	}
}
