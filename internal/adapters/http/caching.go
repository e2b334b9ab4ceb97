package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on
// endpoint. Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case path == "/v1/spots" || strings.HasPrefix(path, "/v1/spots/nearby"):
			ttl = "public, max-age=15" // Live snapshot churns constantly

		case strings.HasPrefix(path, "/v1/spots/"):
			ttl = "public, max-age=15" // Single spot can expire any moment

		case path == "/v1/parkings":
			ttl = "public, max-age=300" // Municipal data is slow-moving

		case strings.HasPrefix(path, "/v1/parkings/"):
			ttl = "public, max-age=300"

		case strings.HasPrefix(path, "/v1/route"):
			ttl = "private, max-age=60" // Route depends on the caller's position

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60" // Default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
