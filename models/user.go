// Package models contains domain entities and business models for the scraping platform
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InitialCreditGrant is the number of credits a user receives at signup.
// The grant is not recorded in the ledger; the stats aggregation accounts
// for it when reconciling totals.
const InitialCreditGrant = 10

type User struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`

	Email        string `gorm:"size:255;not null;uniqueIndex:idx_users_email" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"` // Never serialize password hash
	FirstName    string `gorm:"size:100" json:"first_name"`
	LastName     string `gorm:"size:100" json:"last_name"`

	// Credits is the balance cache. The credit_transactions ledger is the
	// source of truth; this column is only ever mutated in the same database
	// transaction as a matching ledger append.
	Credits int64 `gorm:"not null;default:0;check:credits >= 0" json:"credits"`

	// External billing identity (opaque provider identifiers)
	BillingCustomerID     *string `gorm:"size:255;index:idx_users_billing_customer_id" json:"billing_customer_id,omitempty"`
	BillingSubscriptionID *string `gorm:"size:255" json:"billing_subscription_id,omitempty"`
	AutoRenewal           *bool   `gorm:"default:false" json:"auto_renewal"`

	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Relations
	Campaigns          []Campaign          `gorm:"foreignKey:UserID" json:"-"`
	CreditTransactions []CreditTransaction `gorm:"foreignKey:UserID" json:"-"`
	AuditLogs          []AuditLog          `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate ensures UUID is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	return nil
}

// FullName returns the user's display name
func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID                *uint      `json:"id,omitempty"`
	UUID              *uuid.UUID `json:"uuid,omitempty"`
	Email             *string    `json:"email,omitempty"`
	BillingCustomerID *string    `json:"billing_customer_id,omitempty"`
	CreatedAfter      *time.Time `json:"created_after,omitempty"`
	CreatedBefore     *time.Time `json:"created_before,omitempty"`
}
