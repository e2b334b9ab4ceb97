package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// SetLinkHeaders adds RFC 8288 Link headers (first/prev/next/last) built
// from the current request path.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	link := func(rel string, offset int) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel=%q`, base, offset, p.Limit, rel)
	}

	links := []string{link("first", 0)}

	if p.Offset > 0 {
		links = append(links, link("prev", max(p.Offset-p.Limit, 0)))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link("next", p.Offset+p.Limit))
	}
	links = append(links, link("last", max(p.Total-p.Limit, 0)))

	c.Set("Link", strings.Join(links, ", "))
}
