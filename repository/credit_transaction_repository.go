package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scrapeflow/scrapeflow-api/models"
)

// CreditTransactionRepositoryImpl implements the CreditTransactionRepository
// interface. The ledger is append-only: the implementation exposes no update
// or delete operations.
type CreditTransactionRepositoryImpl struct {
	*BaseRepository[models.CreditTransaction, models.CreditTransactionFilter]
}

// NewCreditTransactionRepository creates a new credit transaction repository
func NewCreditTransactionRepository(db *gorm.DB) CreditTransactionRepository {
	return &CreditTransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CreditTransaction, models.CreditTransactionFilter](db),
	}
}

// ByID retrieves a ledger entry by ID
func (r *CreditTransactionRepositoryImpl) ByID(ctx context.Context, id uint) (*models.CreditTransaction, error) {
	db := r.getDB(ctx)

	var entry models.CreditTransaction
	err := db.Last(&entry, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

// ListByUser retrieves a user's ledger entries, newest first
func (r *CreditTransactionRepositoryImpl) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.CreditTransaction, error) {
	filter := models.CreditTransactionFilter{UserID: &userID}
	return r.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, offset)
}

// ByCorrelationID retrieves all entries sharing a correlation ID, oldest first
func (r *CreditTransactionRepositoryImpl) ByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*models.CreditTransaction, error) {
	filter := models.CreditTransactionFilter{CorrelationID: &correlationID}
	return r.ByFilter(ctx, filter, "created_at ASC, id ASC", 0, 0)
}

// SumAbsByType returns the sum of absolute amounts of the user's entries of
// the given type. Usage entries are stored negative, so ABS normalizes all
// types to magnitudes.
func (r *CreditTransactionRepositoryImpl) SumAbsByType(ctx context.Context, userID uint, txType models.CreditTransactionType) (int64, error) {
	db := r.getDB(ctx)

	var total int64
	err := db.Model(&models.CreditTransaction{}).
		Select("COALESCE(SUM(ABS(amount)), 0)").
		Where("user_id = ? AND type = ?", userID, txType).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	return total, nil
}

// ByFilter retrieves ledger entries based on filter criteria
func (r *CreditTransactionRepositoryImpl) ByFilter(ctx context.Context, filter models.CreditTransactionFilter, orderBy string, limit, offset int) ([]*models.CreditTransaction, error) {
	db := r.getDB(ctx)

	var entries []*models.CreditTransaction
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Count returns the number of ledger entries matching the filter
func (r *CreditTransactionRepositoryImpl) Count(ctx context.Context, filter models.CreditTransactionFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var entry models.CreditTransaction
	query := r.applyFilter(db.Model(&entry), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CreditTransactionRepositoryImpl) applyFilter(db *gorm.DB, filter models.CreditTransactionFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CorrelationID != nil {
		db = db.Where("correlation_id = ?", *filter.CorrelationID)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
