// Package testing provides test utilities and database setup for testing the scraping service
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a user with the given credit balance
func (tf *TestFixtures) CreateTestUser(credits int64) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	user := &models.User{
		Email:        fmt.Sprintf("jane.doe.%s@example.com", randomDigits),
		PasswordHash: string(hashedPassword),
		FirstName:    "Jane",
		LastName:     "Doe",
		Credits:      credits,
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestCampaign creates a campaign owned by the given user
func (tf *TestFixtures) CreateTestCampaign(userID uint, status models.CampaignStatus) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UserID:       userID,
		Status:       status,
		Hashtag:      "travel",
		RequestCount: 50,
	}
	if status != models.CampaignStatusPending {
		jobID := fmt.Sprintf("run_%s", uuid.NewString()[:8])
		campaign.ExternalJobID = &jobID
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestLedgerEntry appends a ledger entry for the given user
func (tf *TestFixtures) CreateTestLedgerEntry(userID uint, amount int64, txType models.CreditTransactionType, balanceBefore int64) (*models.CreditTransaction, error) {
	entry := &models.CreditTransaction{
		UserID:        userID,
		Amount:        amount,
		Type:          txType,
		CorrelationID: correlationFor(txType),
		Description:   fmt.Sprintf("Fixture %s entry", txType),
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore + amount,
		CreatedAt:     utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test ledger entry: %w", err)
	}
	return entry, nil
}

// correlationFor returns a campaign correlation for the entry types that
// always carry one. Purchases are campaign-independent.
func correlationFor(txType models.CreditTransactionType) *uuid.UUID {
	if txType == models.CreditTransactionTypePurchase {
		return nil
	}
	return utils.ToPtr(uuid.New())
}

// CreateTestResults builds a deterministic batch of scraped posts
func CreateTestResults(n int) models.ScrapeResults {
	results := make(models.ScrapeResults, 0, n)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		results = append(results, models.ScrapeResult{
			ID:            fmt.Sprintf("post_%04d", i),
			URL:           fmt.Sprintf("https://www.instagram.com/p/post_%04d/", i),
			Type:          "Image",
			ShortCode:     fmt.Sprintf("SC%04d", i),
			Caption:       fmt.Sprintf("Caption for post %d #travel", i),
			OwnerID:       fmt.Sprintf("%d", 1000+i),
			OwnerUsername: fmt.Sprintf("user_%d", i),
			OwnerFullName: fmt.Sprintf("User %d", i),
			Hashtags:      []string{"travel", fmt.Sprintf("tag%d", i%3)},
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			LikesCount:    int64(10 * (i + 1)),
			CommentsCount: int64(i),
			DisplayURL:    fmt.Sprintf("https://cdn.example.com/post_%04d.jpg", i),
			IsSponsored:   i%7 == 0,
		})
	}
	return results
}
