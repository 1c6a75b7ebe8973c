// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/scrapeflow/scrapeflow-api/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUUID(ctx context.Context, uuid string) (*models.User, error)
	ByBillingCustomerID(ctx context.Context, billingCustomerID string) (*models.User, error)
	Update(ctx context.Context, user models.User) error
	UpdateLastLogin(ctx context.Context, userID uint) error
	// DebitCredits atomically decrements the balance cache, guarded so the
	// balance can never go negative. Returns false when credits were
	// insufficient at the time of the update.
	DebitCredits(ctx context.Context, userID uint, amount int64) (bool, error)
	// CreditCredits atomically increments the balance cache.
	CreditCredits(ctx context.Context, userID uint, amount int64) error
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ByUUIDAndUser(ctx context.Context, uuid string, userID uint) (*models.Campaign, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Campaign, error)
	ListByStatus(ctx context.Context, status models.CampaignStatus, limit, offset int) ([]*models.Campaign, error)
	Update(ctx context.Context, campaign models.Campaign) error
	// UpdateFromActive writes the campaign's lifecycle columns only while the
	// stored row is still pending or running. Returns false when the row was
	// already terminal, so a stale poller can never overwrite a finished
	// campaign.
	UpdateFromActive(ctx context.Context, campaign models.Campaign) (bool, error)
	CountByUserAndStatus(ctx context.Context, userID uint, status models.CampaignStatus) (int64, error)
}

// CreditTransactionRepository defines operations for the append-only credit ledger.
// There are deliberately no update or delete operations.
type CreditTransactionRepository interface {
	Save(ctx context.Context, entry *models.CreditTransaction) error
	ByID(ctx context.Context, id uint) (*models.CreditTransaction, error)
	ByFilter(ctx context.Context, filter models.CreditTransactionFilter, orderBy string, limit, offset int) ([]*models.CreditTransaction, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.CreditTransaction, error)
	ByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*models.CreditTransaction, error)
	// SumAbsByType returns the sum of absolute amounts of the user's entries
	// of the given type.
	SumAbsByType(ctx context.Context, userID uint, txType models.CreditTransactionType) (int64, error)
	Count(ctx context.Context, filter models.CreditTransactionFilter) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
