package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditTransactionType classifies a ledger entry
type CreditTransactionType string

const (
	// CreditTransactionTypePurchase records credits bought through billing (positive amount)
	CreditTransactionTypePurchase CreditTransactionType = "purchase"
	// CreditTransactionTypeUsage records credits spent on a campaign (negative amount)
	CreditTransactionTypeUsage CreditTransactionType = "usage"
	// CreditTransactionTypeRefund records credits returned after a failed job start (positive amount)
	CreditTransactionTypeRefund CreditTransactionType = "refund"
)

func (t CreditTransactionType) String() string {
	return string(t)
}

func (t CreditTransactionType) Valid() bool {
	switch t {
	case CreditTransactionTypePurchase, CreditTransactionTypeUsage, CreditTransactionTypeRefund:
		return true
	}
	return false
}

func (t *CreditTransactionType) Scan(value interface{}) error {
	if value == nil {
		return fmt.Errorf("cannot scan nil into CreditTransactionType")
	}
	switch v := value.(type) {
	case string:
		*t = CreditTransactionType(v)
	case []byte:
		*t = CreditTransactionType(v)
	default:
		return fmt.Errorf("cannot scan %T into CreditTransactionType", value)
	}
	if !t.Valid() {
		return fmt.Errorf("invalid credit transaction type: %s", *t)
	}
	return nil
}

func (t CreditTransactionType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid credit transaction type: %s", t)
	}
	return string(t), nil
}

// CreditTransaction is an append-only ledger entry. Rows are never updated
// or deleted; corrections are expressed as new entries (refunds).
type CreditTransaction struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_credit_transactions_uuid" json:"uuid"`

	// CorrelationID groups related entries, e.g. a usage entry and the
	// refund that compensates it share the campaign UUID.
	CorrelationID *uuid.UUID `gorm:"type:uuid;index:idx_credit_transactions_correlation_id" json:"correlation_id,omitempty"`

	UserID uint `gorm:"not null;index:idx_credit_transactions_user_id" json:"user_id"`

	// Amount is signed: positive for purchase and refund, negative for usage.
	Amount int64                 `gorm:"not null" json:"amount"`
	Type   CreditTransactionType `gorm:"type:varchar(20);not null;index:idx_credit_transactions_type" json:"type"`

	Description string `gorm:"size:500" json:"description"`

	// Balance snapshots taken in the same transaction as the entry
	BalanceBefore int64 `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64 `gorm:"not null" json:"balance_after"`

	// PaymentRef is the billing provider's reference for purchase entries.
	PaymentRef *string `gorm:"size:255" json:"payment_ref,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_credit_transactions_created_at" json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

func (ct *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if ct.UUID == uuid.Nil {
		ct.UUID = uuid.New()
	}
	return nil
}

// CreditTransactionFilter represents filter criteria for ledger queries
type CreditTransactionFilter struct {
	ID            *uint                  `json:"id,omitempty"`
	UUID          *uuid.UUID             `json:"uuid,omitempty"`
	CorrelationID *uuid.UUID             `json:"correlation_id,omitempty"`
	UserID        *uint                  `json:"user_id,omitempty"`
	Type          *CreditTransactionType `json:"type,omitempty"`
	CreatedAfter  *time.Time             `json:"created_after,omitempty"`
	CreatedBefore *time.Time             `json:"created_before,omitempty"`
}
