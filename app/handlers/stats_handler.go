// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	businessflow "github.com/scrapeflow/scrapeflow-api/business_flow"
)

// StatsHandlerInterface defines the contract for stats handlers
type StatsHandlerInterface interface {
	GetStats(c fiber.Ctx) error
}

// StatsHandler handles dashboard statistics HTTP requests
type StatsHandler struct {
	statsFlow businessflow.StatsFlow
}

func (h *StatsHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *StatsHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsFlow businessflow.StatsFlow) *StatsHandler {
	return &StatsHandler{statsFlow: statsFlow}
}

// GetStats returns the user's dashboard statistics
// @Summary Get Stats
// @Description Aggregate campaign counts and credit totals for the authenticated user
// @Tags Stats
// @Accept json
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GetStatsResponse} "Stats retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stats [get]
func (h *StatsHandler) GetStats(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	req := &dto.GetStatsRequest{UserID: userID}
	result, err := h.statsFlow.GetStats(h.createRequestContext(c, "/api/v1/stats"), req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}

		log.Println("Stats retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Stats retrieval failed", "STATS_RETRIEVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *StatsHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
