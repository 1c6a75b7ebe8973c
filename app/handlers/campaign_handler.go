// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	businessflow "github.com/scrapeflow/scrapeflow-api/business_flow"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	CheckCampaignStatus(c fiber.Ctx) error
	DownloadCampaign(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	exportFlow   businessflow.ExportFlow
	validator    *validator.Validate
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow, exportFlow businessflow.ExportFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		exportFlow:   exportFlow,
		validator:    validator.New(),
	}
}

// CreateCampaign handles the campaign creation process
// @Summary Create Campaign
// @Description Create a scraping campaign for a hashtag, debiting one credit per requested post
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignResponse} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 402 {object} dto.APIResponse "Insufficient credits"
// @Failure 502 {object} dto.APIResponse "Scraping provider rejected the job"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	// Get client information
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	// Get authenticated user ID from context
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	result, err := h.campaignFlow.CreateCampaign(h.createRequestContext(c, "/api/v1/campaigns"), &req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsInvalidHashtag(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Hashtag contains no valid characters", "INVALID_HASHTAG", nil)
		}
		if businessflow.IsInvalidRequestCount(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Request count is out of range", "INVALID_REQUEST_COUNT", nil)
		}
		if businessflow.IsInsufficientCredits(err) {
			return h.ErrorResponse(c, fiber.StatusPaymentRequired, "Insufficient credits", "INSUFFICIENT_CREDITS", nil)
		}
		if businessflow.IsJobStartFailed(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Scraping job could not be started; credits were refunded", "JOB_START_FAILED", nil)
		}

		log.Println("Campaign creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, fiber.Map{
		"uuid":              result.UUID,
		"status":            result.Status,
		"hashtag":           result.Hashtag,
		"request_count":     result.RequestCount,
		"remaining_credits": result.RemainingCredits,
		"created_at":        result.CreatedAt,
	})
}

// GetCampaign returns a single campaign with its results
// @Summary Get Campaign
// @Description Retrieve one campaign including any scraped results
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignDTO} "Campaign retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	req := &dto.GetCampaignRequest{UUID: campaignUUID, UserID: userID}
	result, err := h.campaignFlow.GetCampaign(h.createRequestContext(c, "/api/v1/campaigns/"+campaignUUID), req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}

		log.Println("Campaign retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign retrieval failed", "CAMPAIGN_RETRIEVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved", result)
}

// ListCampaigns returns the user's campaigns, newest first
// @Summary List Campaigns
// @Description List the authenticated user's campaigns with pagination
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse} "Campaigns retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	req := &dto.ListCampaignsRequest{UserID: userID, Page: page, PageSize: pageSize}
	result, err := h.campaignFlow.ListCampaigns(h.createRequestContext(c, "/api/v1/campaigns"), req, metadata)
	if err != nil {
		if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
		}

		log.Println("Campaign listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign listing failed", "CAMPAIGN_LISTING_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// CheckCampaignStatus reconciles one campaign against its provider run
// @Summary Check Campaign Status
// @Description Poll the scraping provider and persist any terminal state transition
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CheckCampaignStatusResponse} "Status reconciled"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign has no provider job yet, or its results are not available yet"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid}/status [get]
func (h *CampaignHandler) CheckCampaignStatus(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	req := &dto.CheckCampaignStatusRequest{UUID: campaignUUID, UserID: userID}
	result, err := h.campaignFlow.CheckCampaignStatus(h.createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/status"), req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsJobNotStarted(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign has no provider job yet", "JOB_NOT_STARTED", nil)
		}
		if businessflow.IsResultsUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Results are not available yet, try again shortly", "RESULTS_UNAVAILABLE", nil)
		}

		log.Println("Campaign status check failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign status check failed", "STATUS_CHECK_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// DownloadCampaign streams an export of a completed campaign's results
// @Summary Download Campaign Results
// @Description Export a completed campaign as an Excel or CSV file
// @Tags Campaigns
// @Accept json
// @Produce application/octet-stream
// @Param uuid path string true "Campaign UUID"
// @Param format query string false "Export format" Enums(xlsx, excel, csv) default(xlsx)
// @Success 200 {file} file "Export file"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign has not completed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid}/download [get]
func (h *CampaignHandler) DownloadCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	req := &dto.ExportCampaignRequest{
		UUID:   campaignUUID,
		UserID: userID,
		Format: c.Query("format", "xlsx"),
	}
	result, err := h.exportFlow.ExportCampaign(h.createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/download"), req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignNotCompleted(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign has not completed yet", "CAMPAIGN_NOT_COMPLETED", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "EXPORT_FORMAT_INVALID" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
		}

		log.Println("Campaign export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign export failed", "CAMPAIGN_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", result.ContentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	return c.Status(fiber.StatusOK).Send(result.Content)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *CampaignHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
