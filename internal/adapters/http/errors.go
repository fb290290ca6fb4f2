package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int            `json:"status"`
	Code      string         `json:"code"`    // Error code: bad_request, capacity_exceeded, internal_error, etc.
	Message   string         `json:"message"` // Human-readable message
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	return sendError(c, APIError{Status: status, Code: code, Message: message})
}

func sendError(c *fiber.Ctx, e APIError) error {
	e.RequestID, _ = c.Locals("requestid").(string)
	return c.Status(e.Status).JSON(e)
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

// writeError maps the domain error taxonomy onto HTTP.
func writeError(c *fiber.Ctx, err error) error {
	var (
		validation domain.ValidationError
		capacity   domain.CapacityError
		conflict   domain.ConflictError
		payment    domain.PaymentVerificationError
		txErr      domain.TransactionError
		policy     domain.PolicyStateError
		notFound   domain.NotFoundError
		forbidden  domain.ForbiddenError
	)
	switch {
	case errors.As(err, &validation):
		e := APIError{Status: fiber.StatusBadRequest, Code: "validation_failed", Message: err.Error()}
		if validation.Field != "" {
			e.Details = map[string]any{"field": validation.Field}
		}
		return sendError(c, e)
	case errors.As(err, &capacity):
		return sendError(c, APIError{
			Status:  fiber.StatusConflict,
			Code:    "capacity_exceeded",
			Message: capacity.Error(),
			Details: map[string]any{
				"segment_id": capacity.SegmentID,
				"date":       domain.FormatDate(capacity.Date),
				"requested":  capacity.Requested,
				"remaining":  capacity.Remaining,
			},
		})
	case errors.As(err, &conflict):
		return sendError(c, APIError{
			Status:  fiber.StatusConflict,
			Code:    "conflict",
			Message: conflict.Error(),
			Details: map[string]any{"resource": conflict.Resource},
		})
	case errors.As(err, &payment):
		return sendError(c, APIError{Status: fiber.StatusPaymentRequired, Code: "payment_verification_failed", Message: payment.Error()})
	case errors.As(err, &txErr):
		return sendError(c, APIError{Status: fiber.StatusServiceUnavailable, Code: "transaction_aborted", Message: "transaction aborted, retry the request", Retryable: true})
	case errors.As(err, &policy):
		return sendError(c, APIError{
			Status:  fiber.StatusConflict,
			Code:    "invalid_state",
			Message: policy.Error(),
			Details: map[string]any{"resource": policy.Resource, "state": policy.State},
		})
	case errors.As(err, &notFound):
		return newError(c, fiber.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &forbidden):
		return newError(c, fiber.StatusForbidden, "forbidden", forbidden.Error())
	}

	LoggerFromCtx(c.UserContext()).LogAttrs(c.UserContext(), slog.LevelError, "unhandled error",
		slog.String("path", c.Path()), slog.String("error", err.Error()))
	return newError(c, fiber.StatusInternalServerError, "internal_error", "internal error")
}
