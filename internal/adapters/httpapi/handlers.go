package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type handler struct {
	engine       Engine
	admin        CacheAdmin
	breakerState func() string
	logger       *zap.Logger
}

func (h *handler) health(c *fiber.Ctx) error {
	results := fiber.Map{"status": "ok"}
	if h.breakerState != nil {
		results["cache_breaker"] = h.breakerState()
	}
	return success(c, "Service healthy", results)
}

func (h *handler) parseCandidate(c *fiber.Ctx) (*CandidateRequest, error) {
	var req CandidateRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func (h *handler) evaluate(c *fiber.Ctx) error {
	req, err := h.parseCandidate(c)
	if err != nil {
		return errorResponse(c, err)
	}

	decision, err := h.engine.Evaluate(c.UserContext(), req.toCore())
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, "Candidate evaluated", decision)
}

func (h *handler) process(c *fiber.Ctx) error {
	req, err := h.parseCandidate(c)
	if err != nil {
		return errorResponse(c, err)
	}

	result, err := h.engine.Process(c.UserContext(), req.toCore())
	if err != nil {
		h.logger.Warn("Processing failed",
			zap.String("request_id", requestID(c)),
			zap.String("feature", req.Feature),
			zap.Error(err))
		return errorResponse(c, err)
	}
	return success(c, "Candidate processed", result)
}

func (h *handler) cacheStats(c *fiber.Ctx) error {
	stats, err := h.admin.GetCacheStats(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, "Cache stats retrieved", stats)
}

func (h *handler) clearCache(c *fiber.Ctx) error {
	var req ClearRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorResponse(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error()))
		}
	}
	if err := req.Validate(); err != nil {
		return errorResponse(c, err)
	}

	result, err := h.admin.ClearCache(c.UserContext(), req.Feature)
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, "Cache cleared", result)
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
