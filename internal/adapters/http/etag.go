package http

import (
	"fmt"
	"hash/fnv"

	"github.com/gofiber/fiber/v2"
)

// ETagMiddleware tags successful GET responses with a weak ETag and
// answers If-None-Match with 304. The spot snapshot endpoints churn
// every few seconds, so a cheap FNV hash is enough; this is about
// saving bytes on unchanged polls, not integrity.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		h := fnv.New64a()
		h.Write(body)
		etag := fmt.Sprintf(`W/"%d-%x"`, len(body), h.Sum64())
		c.Set("ETag", etag)

		if c.Get("If-None-Match") == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}
