package http

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// SpotStats holds row counts from the parking tables.
type SpotStats struct {
	ActiveSpots  int    `json:"active_spots"`
	TotalSpots   int    `json:"total_spots"`
	Parkings     int    `json:"parkings"`
	LastActivity string `json:"last_activity,omitempty"`
}

// SpotStatsHandler returns row counts from the parking tables.
func SpotStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats SpotStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM public_spots WHERE status = 'active' AND expires_at > now()),
				(SELECT count(*) FROM public_spots),
				(SELECT count(*) FROM private_parkings),
				COALESCE((SELECT max(created_at)::text FROM public_spots), '')
		`)
		if err := row.Scan(&stats.ActiveSpots, &stats.TotalSpots, &stats.Parkings, &stats.LastActivity); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// ListSpotsHandler returns the combined marker snapshot, paginated.
func ListSpotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		markers, err := deps.Spots.Markers(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(markers)
		if offset >= total {
			markers = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			markers = markers[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: markers, Pagination: pg})
	}
}

// NearbySpotsHandler returns markers within a radius of a point.
func NearbySpotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 500)
		limit := c.QueryInt("limit", 50)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return errBadRequest(c, "lat/lon out of range")
		}
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		markers, err := deps.Spots.NearbyMarkers(c.Context(), lat, lon, radius, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		return c.JSON(markers)
	}
}

// GetSpotHandler returns a single public spot by ID.
func GetSpotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "spot id is required")
		}
		spot, err := deps.Spots.GetSpot(c.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "spot not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(spot)
	}
}

// createSpotRequest is the POST /v1/spots body.
type createSpotRequest struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DisplayName    string  `json:"display_name"`
	AvailableSpots int     `json:"available_spots"`
}

// CreateSpotHandler creates a public spot owned by the caller.
func CreateSpotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return errUnauthorized(c, "X-User-ID header is required")
		}

		var req createSpotRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
			return errBadRequest(c, "lat/lon out of range")
		}
		if req.AvailableSpots <= 0 {
			return errBadRequest(c, "available_spots must be positive")
		}

		spot, err := deps.Spots.CreateSpot(c.Context(), userID,
			domain.GeoPoint{Lat: req.Lat, Lon: req.Lon}, req.DisplayName, req.AvailableSpots)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrLimitExceeded):
				return errPaymentRequired(c, "active spot limit reached for your plan")
			case errors.Is(err, domain.ErrValidation):
				return errBadRequest(c, err.Error())
			default:
				return errInternal(c, err.Error())
			}
		}
		return c.Status(201).JSON(spot)
	}
}

// resolveSpotRequest is the POST /v1/spots/:id/resolve body.
type resolveSpotRequest struct {
	Found bool `json:"found"`
}

// ResolveSpotHandler records whether the arriving driver found the spot.
func ResolveSpotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "spot id is required")
		}
		var req resolveSpotRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		status := domain.SpotNotFound
		if req.Found {
			status = domain.SpotConfirmed
		}
		if err := deps.Spots.ResolveSpot(c.Context(), id, status); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "spot not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"id": id, "status": status})
	}
}

// ListParkingsHandler returns all private parking lots, paginated.
func ListParkingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		markers, err := deps.Spots.Markers(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		var parkings []domain.SpotMarker
		for _, m := range markers {
			if m.Kind == domain.MarkerPrivate {
				parkings = append(parkings, m)
			}
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(parkings)
		if offset >= total {
			parkings = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			parkings = parkings[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: parkings, Pagination: pg})
	}
}

// GetParkingHandler returns a single private parking lot by ID.
func GetParkingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "parking id is required")
		}
		parking, err := deps.Spots.GetParking(c.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "parking not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(parking)
	}
}

// ImportParkingsHandler bulk-imports private parking lots. Admin only.
func ImportParkingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("X-API-Role") != "admin" {
			return errForbidden(c, "admin role required")
		}

		var parkings []domain.PrivateParking
		if err := json.Unmarshal(c.Body(), &parkings); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if len(parkings) == 0 {
			return errBadRequest(c, "empty import")
		}
		for i, p := range parkings {
			if p.ParkingID == "" {
				return errBadRequest(c, fmt.Sprintf("parking %d: parking_id is required", i))
			}
		}

		if err := deps.Spots.ImportParkings(c.Context(), parkings); err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"imported": len(parkings)})
	}
}

// RouteHandler proxies a one-shot route request, for clients that want a
// route preview without opening a live session.
func RouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fromLat := c.QueryFloat("from_lat", 0)
		fromLon := c.QueryFloat("from_lon", 0)
		toLat := c.QueryFloat("to_lat", 0)
		toLon := c.QueryFloat("to_lon", 0)

		if fromLat == 0 || fromLon == 0 || toLat == 0 || toLon == 0 {
			return errBadRequest(c, "from_lat, from_lon, to_lat and to_lon are required")
		}

		// Cache identical requests briefly; origins snap to ~11 m cells.
		cacheKey := fmt.Sprintf("route:%.4f:%.4f:%.4f:%.4f", fromLat, fromLon, toLat, toLon)
		if deps.Cache != nil {
			if data, err := deps.Cache.Get(c.Context(), cacheKey); err == nil {
				c.Set("Content-Type", "application/json")
				return c.Send(data)
			}
		}

		summary, err := deps.Routing.Route(c.Context(),
			domain.GeoPoint{Lat: fromLat, Lon: fromLon},
			domain.GeoPoint{Lat: toLat, Lon: toLon})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNoPath):
				return errNotFound(c, "no route found")
			case errors.Is(err, domain.ErrRoutingUnavailable):
				return newError(c, 502, "routing_unavailable", "directions service unavailable")
			default:
				return errInternal(c, err.Error())
			}
		}

		if deps.Cache != nil {
			if data, err := json.Marshal(summary); err == nil {
				_ = deps.Cache.Set(c.Context(), cacheKey, data, 60)
			}
		}
		return c.JSON(summary)
	}
}
