package http

import "github.com/gofiber/fiber/v2"

// APIError is the JSON error envelope returned by every handler.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

var errCodes = map[int]string{
	400: "bad_request",
	401: "unauthorized",
	402: "limit_exceeded",
	403: "forbidden",
	404: "not_found",
	409: "conflict",
	500: "internal_error",
}

func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func apiError(c *fiber.Ctx, status int, msg string) error {
	code, ok := errCodes[status]
	if !ok {
		code = "error"
	}
	return newError(c, status, code, msg)
}

func errBadRequest(c *fiber.Ctx, msg string) error { return apiError(c, 400, msg) }

func errUnauthorized(c *fiber.Ctx, msg string) error { return apiError(c, 401, msg) }

func errForbidden(c *fiber.Ctx, msg string) error { return apiError(c, 403, msg) }

func errNotFound(c *fiber.Ctx, msg string) error { return apiError(c, 404, msg) }

func errConflict(c *fiber.Ctx, msg string) error { return apiError(c, 409, msg) }

func errInternal(c *fiber.Ctx, msg string) error { return apiError(c, 500, msg) }

// errPaymentRequired signals the caller's plan limit was reached.
func errPaymentRequired(c *fiber.Ctx, msg string) error { return apiError(c, 402, msg) }
