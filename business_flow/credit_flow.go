// Package businessflow contains the core business logic and use cases for credit and billing workflows
package businessflow

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/config"
	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/repository"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

// Billing event types recognized in provider callbacks
const (
	BillingEventPaymentSucceeded      = "payment_succeeded"
	BillingEventSubscriptionCancelled = "subscription_cancelled"
)

// CreditFlow handles the credit ledger and billing integration
type CreditFlow interface {
	ListTransactions(ctx context.Context, req *dto.ListCreditTransactionsRequest, metadata *ClientMetadata) (*dto.ListCreditTransactionsResponse, error)
	HandleBillingCallback(ctx context.Context, req *dto.BillingCallbackRequest, metadata *ClientMetadata) (*dto.BillingCallbackResponse, error)
	Subscribe(ctx context.Context, req *dto.SubscribeRequest, metadata *ClientMetadata) (*dto.SubscribeResponse, error)
}

// CreditFlowImpl implements the credit business flow
type CreditFlowImpl struct {
	userRepo      repository.UserRepository
	creditRepo    repository.CreditTransactionRepository
	auditRepo     repository.AuditLogRepository
	txRunner      repository.TxRunner
	billingConfig config.BillingConfig
}

// NewCreditFlow creates a new credit flow instance
func NewCreditFlow(
	userRepo repository.UserRepository,
	creditRepo repository.CreditTransactionRepository,
	auditRepo repository.AuditLogRepository,
	txRunner repository.TxRunner,
	billingConfig config.BillingConfig,
) CreditFlow {
	return &CreditFlowImpl{
		userRepo:      userRepo,
		creditRepo:    creditRepo,
		auditRepo:     auditRepo,
		txRunner:      txRunner,
		billingConfig: billingConfig,
	}
}

// ListTransactions returns the user's ledger entries, newest first
func (f *CreditFlowImpl) ListTransactions(ctx context.Context, req *dto.ListCreditTransactionsRequest, metadata *ClientMetadata) (*dto.ListCreditTransactionsResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Invalid page", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Invalid page size", ErrInvalidPageSize)
	}

	entries, err := f.creditRepo.ListByUser(ctx, req.UserID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LEDGER_LIST_FAILED", "Failed to list credit transactions", err)
	}

	total, err := f.creditRepo.Count(ctx, models.CreditTransactionFilter{UserID: &req.UserID})
	if err != nil {
		return nil, NewBusinessError("LEDGER_COUNT_FAILED", "Failed to count credit transactions", err)
	}

	out := make([]dto.CreditTransactionDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ToCreditTransactionDTO(*entry))
	}

	return &dto.ListCreditTransactionsResponse{
		Message:      "Credit transactions retrieved",
		Transactions: out,
		Page:         page,
		PageSize:     pageSize,
		Total:        total,
	}, nil
}

// HandleBillingCallback verifies the provider's webhook signature and applies
// the billing event. Purchases append a ledger entry and increment the
// balance cache in one transaction.
func (f *CreditFlowImpl) HandleBillingCallback(ctx context.Context, req *dto.BillingCallbackRequest, metadata *ClientMetadata) (*dto.BillingCallbackResponse, error) {
	if req == nil {
		return nil, NewBusinessError("CALLBACK_NIL", "Callback request is nil", ErrCallbackRequestNil)
	}
	if err := f.verifySignature(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, NewBusinessError("CALLBACK_CUSTOMER_REQUIRED", "Customer ID is required", ErrPaymentRefRequired)
	}

	user, err := f.userRepo.ByBillingCustomerID(ctx, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "No user for billing customer", ErrUserNotFound)
	}

	switch req.EventType {
	case BillingEventPaymentSucceeded:
		return f.applyPurchase(ctx, user, req, metadata)

	case BillingEventSubscriptionCancelled:
		user.AutoRenewal = utils.ToPtr(false)
		user.BillingSubscriptionID = nil
		if err := f.txRunner.Run(ctx, func(txCtx context.Context) error {
			return f.userRepo.Update(txCtx, *user)
		}); err != nil {
			return nil, NewBusinessError("SUBSCRIPTION_UPDATE_FAILED", "Failed to cancel subscription", err)
		}

		msg := fmt.Sprintf("Subscription cancelled for user %s", user.UUID.String())
		_ = f.createAuditLog(ctx, user, models.AuditActionSubscriptionCancel, msg, true, nil, metadata)

		return &dto.BillingCallbackResponse{Message: "Subscription cancelled"}, nil

	default:
		// Unknown events are acknowledged without effect so the provider
		// does not retry forever.
		return &dto.BillingCallbackResponse{Message: "Event ignored"}, nil
	}
}

func (f *CreditFlowImpl) applyPurchase(ctx context.Context, user *models.User, req *dto.BillingCallbackRequest, metadata *ClientMetadata) (*dto.BillingCallbackResponse, error) {
	if strings.TrimSpace(req.PaymentRef) == "" {
		return nil, NewBusinessError("CALLBACK_PAYMENT_REF_REQUIRED", "Payment reference is required", ErrPaymentRefRequired)
	}

	// Idempotency: a payment_ref is applied at most once
	existing, err := f.creditRepo.ByFilter(ctx, models.CreditTransactionFilter{
		UserID: &user.ID,
		Type:   utils.ToPtr(models.CreditTransactionTypePurchase),
	}, "", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LEDGER_LOOKUP_FAILED", "Failed to check existing purchases", err)
	}
	for _, entry := range existing {
		if entry.PaymentRef != nil && *entry.PaymentRef == req.PaymentRef {
			return &dto.BillingCallbackResponse{Message: "Payment already applied"}, nil
		}
	}

	amount := int64(utils.CreditsPerPurchase)
	err = f.txRunner.Run(ctx, func(txCtx context.Context) error {
		if err := f.userRepo.CreditCredits(txCtx, user.ID, amount); err != nil {
			return err
		}

		entry := &models.CreditTransaction{
			UserID:        user.ID,
			Amount:        amount,
			Type:          models.CreditTransactionTypePurchase,
			Description:   fmt.Sprintf("Credit purchase (%d credits)", amount),
			BalanceBefore: user.Credits,
			BalanceAfter:  user.Credits + amount,
			PaymentRef:    utils.ToPtr(req.PaymentRef),
		}
		if err := f.creditRepo.Save(txCtx, entry); err != nil {
			return err
		}

		if req.SubscriptionID != "" {
			user.BillingSubscriptionID = utils.ToPtr(req.SubscriptionID)
			user.AutoRenewal = utils.ToPtr(true)
			return f.userRepo.Update(txCtx, *user)
		}
		return nil
	})
	if err != nil {
		errMsg := fmt.Sprintf("Purchase could not be applied for user %s: %s", user.UUID.String(), err.Error())
		_ = f.createAuditLog(ctx, user, models.AuditActionCreditsPurchased, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("PURCHASE_FAILED", "Failed to apply purchase", err)
	}

	msg := fmt.Sprintf("Purchase applied for user %s: %d credits", user.UUID.String(), amount)
	_ = f.createAuditLog(ctx, user, models.AuditActionCreditsPurchased, msg, true, nil, metadata)

	return &dto.BillingCallbackResponse{
		Message:        "Payment applied",
		CreditsGranted: amount,
	}, nil
}

// verifySignature checks the hex-encoded HMAC-SHA256 of the raw body
func (f *CreditFlowImpl) verifySignature(req *dto.BillingCallbackRequest) error {
	if f.billingConfig.WebhookSecret == "" {
		return nil
	}
	if req.Signature == "" {
		return NewBusinessError("CALLBACK_SIGNATURE_REQUIRED", "Callback signature is required", ErrCallbackSignatureNeeded)
	}

	mac := hmac.New(sha256.New, []byte(f.billingConfig.WebhookSecret))
	mac.Write(req.RawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(req.Signature))) {
		return NewBusinessError("CALLBACK_SIGNATURE_INVALID", "Callback signature verification failed", ErrCallbackSignatureBad)
	}
	return nil
}

// Subscribe returns the provider checkout URL and binds the billing customer
// identity to the user if not already set.
func (f *CreditFlowImpl) Subscribe(ctx context.Context, req *dto.SubscribeRequest, metadata *ClientMetadata) (*dto.SubscribeResponse, error) {
	user, err := getUser(ctx, f.userRepo, req.UserID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}

	if user.BillingCustomerID == nil {
		// The billing provider keys customers by our user UUID
		user.BillingCustomerID = utils.ToPtr(user.UUID.String())
		if err := f.txRunner.Run(ctx, func(txCtx context.Context) error {
			return f.userRepo.Update(txCtx, *user)
		}); err != nil {
			return nil, NewBusinessError("SUBSCRIPTION_INIT_FAILED", "Failed to initialize billing identity", err)
		}
	}

	checkoutURL := f.billingConfig.CheckoutURL
	if f.billingConfig.PriceID != "" {
		checkoutURL = fmt.Sprintf("%s?price_id=%s&customer_id=%s", f.billingConfig.CheckoutURL, f.billingConfig.PriceID, *user.BillingCustomerID)
	}

	msg := fmt.Sprintf("Subscription checkout initiated for user %s", user.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionSubscriptionActivate, msg, true, nil, metadata)

	return &dto.SubscribeResponse{
		Message:     "Checkout session ready",
		CheckoutURL: checkoutURL,
	}, nil
}

func (f *CreditFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil && user.ID != 0 {
		userID = &user.ID
	}

	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return f.auditRepo.Save(ctx, audit)
}
