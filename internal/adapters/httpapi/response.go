package httpapi

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/mikey/ai-cost-optimizer/internal/core"
)

// ResponseData is the envelope of every API response
type ResponseData struct {
	Status  int         `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Results interface{} `json:"results,omitempty"`
}

func success(c *fiber.Ctx, message string, results interface{}) error {
	return c.JSON(ResponseData{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}

func failure(c *fiber.Ctx, status int, code string, err error) error {
	return c.Status(status).JSON(ResponseData{
		Status:  status,
		Code:    code,
		Message: err.Error(),
	})
}

// errorResponse maps engine errors onto HTTP statuses
func errorResponse(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return failure(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err)
	case errors.Is(err, core.ErrUnknownFeature):
		return failure(c, fiber.StatusBadRequest, "UNKNOWN_FEATURE", err)
	case errors.Is(err, core.ErrNoUpstream):
		return failure(c, fiber.StatusServiceUnavailable, "NO_UPSTREAM", err)
	case errors.Is(err, core.ErrMissingResult), errors.Is(err, core.ErrMalformedResult):
		return failure(c, fiber.StatusBadGateway, "UPSTREAM_RESULT_ERROR", err)
	case errors.Is(err, core.ErrUpstreamFailed):
		return failure(c, fiber.StatusBadGateway, "UPSTREAM_ERROR", err)
	case errors.Is(err, core.ErrAggregatorStopped):
		return failure(c, fiber.StatusServiceUnavailable, "SHUTTING_DOWN", err)
	default:
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return failure(c, fe.Code, "REQUEST_ERROR", err)
		}
		return failure(c, fiber.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err)
	}
}
