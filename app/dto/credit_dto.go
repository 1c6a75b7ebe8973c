package dto

// CreditTransactionDTO represents a ledger entry in API responses
type CreditTransactionDTO struct {
	UUID          string  `json:"uuid"`
	CorrelationID *string `json:"correlation_id,omitempty"`
	Amount        int64   `json:"amount"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	BalanceBefore int64   `json:"balance_before"`
	BalanceAfter  int64   `json:"balance_after"`
	CreatedAt     string  `json:"created_at"`
}

// ListCreditTransactionsRequest represents the request to list ledger entries
type ListCreditTransactionsRequest struct {
	UserID   uint `json:"-"`
	Page     int  `json:"page" validate:"omitempty,min=1"`
	PageSize int  `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCreditTransactionsResponse represents the paginated ledger
type ListCreditTransactionsResponse struct {
	Message      string                 `json:"message"`
	Transactions []CreditTransactionDTO `json:"transactions"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"page_size"`
	Total        int64                  `json:"total"`
}

// BillingCallbackRequest represents the billing provider's webhook payload
type BillingCallbackRequest struct {
	EventType      string `json:"event_type" validate:"required"`
	CustomerID     string `json:"customer_id" validate:"required"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	PaymentRef     string `json:"payment_ref,omitempty"`
	// Signature is the hex-encoded HMAC-SHA256 of the raw body, sent in the
	// X-Signature header and copied here by the handler.
	Signature string `json:"-"`
	RawBody   []byte `json:"-"`
}

// BillingCallbackResponse acknowledges a processed webhook
type BillingCallbackResponse struct {
	Message        string `json:"message"`
	CreditsGranted int64  `json:"credits_granted,omitempty"`
}

// SubscribeRequest represents the request to start a billing subscription
type SubscribeRequest struct {
	UserID uint `json:"-"`
}

// SubscribeResponse returns the checkout URL for the billing provider
type SubscribeResponse struct {
	Message     string `json:"message"`
	CheckoutURL string `json:"checkout_url"`
}
