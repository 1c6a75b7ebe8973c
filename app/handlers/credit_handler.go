// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	businessflow "github.com/scrapeflow/scrapeflow-api/business_flow"
)

// CreditHandlerInterface defines the contract for credit and billing handlers
type CreditHandlerInterface interface {
	ListTransactions(c fiber.Ctx) error
	BillingCallback(c fiber.Ctx) error
	Subscribe(c fiber.Ctx) error
}

// CreditHandler handles credit ledger and billing HTTP requests
type CreditHandler struct {
	creditFlow businessflow.CreditFlow
	validator  *validator.Validate
}

func (h *CreditHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CreditHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(creditFlow businessflow.CreditFlow) *CreditHandler {
	return &CreditHandler{
		creditFlow: creditFlow,
		validator:  validator.New(),
	}
}

// ListTransactions returns the user's credit ledger, newest first
// @Summary List Credit Transactions
// @Description List the authenticated user's credit ledger entries with pagination
// @Tags Credits
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListCreditTransactionsResponse} "Transactions retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/credits/transactions [get]
func (h *CreditHandler) ListTransactions(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	req := &dto.ListCreditTransactionsRequest{UserID: userID, Page: page, PageSize: pageSize}
	result, err := h.creditFlow.ListTransactions(h.createRequestContext(c, "/api/v1/credits/transactions"), req, metadata)
	if err != nil {
		if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
		}

		log.Println("Transaction listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Transaction listing failed", "TRANSACTION_LISTING_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// BillingCallback processes billing provider webhooks
// @Summary Billing Webhook
// @Description Process a signed webhook event from the billing provider
// @Tags Billing
// @Accept json
// @Produce json
// @Param X-Signature header string true "Hex-encoded HMAC-SHA256 of the raw body"
// @Param request body dto.BillingCallbackRequest true "Webhook event"
// @Success 200 {object} dto.APIResponse{data=dto.BillingCallbackResponse} "Event processed"
// @Failure 400 {object} dto.APIResponse "Invalid payload"
// @Failure 401 {object} dto.APIResponse "Signature verification failed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/billing/webhook [post]
func (h *CreditHandler) BillingCallback(c fiber.Ctx) error {
	// The signature covers the raw body, so it must be captured before decoding
	rawBody := c.Body()

	var req dto.BillingCallbackRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.RawBody = append([]byte(nil), rawBody...)
	req.Signature = c.Get("X-Signature")

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.creditFlow.HandleBillingCallback(h.createRequestContext(c, "/api/v1/billing/webhook"), &req, metadata)
	if err != nil {
		if businessflow.IsCallbackSignatureNeeded(err) || businessflow.IsCallbackSignatureBad(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Signature verification failed", "INVALID_SIGNATURE", nil)
		}
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No user for billing customer", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsPaymentRefRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Payment reference is required", "PAYMENT_REF_REQUIRED", nil)
		}

		log.Println("Billing callback failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Billing callback failed", "BILLING_CALLBACK_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Subscribe starts a billing checkout session
// @Summary Start Subscription
// @Description Return the billing provider checkout URL for the authenticated user
// @Tags Billing
// @Accept json
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.SubscribeResponse} "Checkout session ready"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/billing/subscribe [post]
func (h *CreditHandler) Subscribe(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	req := &dto.SubscribeRequest{UserID: userID}
	result, err := h.creditFlow.Subscribe(h.createRequestContext(c, "/api/v1/billing/subscribe"), req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}

		log.Println("Subscription initiation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Subscription initiation failed", "SUBSCRIPTION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *CreditHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
