package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow/scrapeflow-api/models"
	testingutil "github.com/scrapeflow/scrapeflow-api/testing"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

// These tests run against a real PostgreSQL instance configured through the
// TEST_DB_* environment variables. They skip when no server is reachable.

func finishDBTest(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, testingutil.ErrNoTestDatabase) {
		t.Skipf("skipping: %v", err)
	}
	require.NoError(t, err)
}

func TestUserRepositoryCredits(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		userRepo := NewUserRepository(testDB.DB)
		ctx := context.Background()

		user, err := fixtures.CreateTestUser(100)
		require.NoError(t, err)

		t.Run("DebitWithinBalance", func(t *testing.T) {
			debited, err := userRepo.DebitCredits(ctx, user.ID, 40)
			require.NoError(t, err)
			assert.True(t, debited)

			stored, err := userRepo.ByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(60), stored.Credits)
		})

		t.Run("DebitBeyondBalanceIsRejected", func(t *testing.T) {
			debited, err := userRepo.DebitCredits(ctx, user.ID, 100)
			require.NoError(t, err)
			assert.False(t, debited)

			stored, err := userRepo.ByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(60), stored.Credits)
		})

		t.Run("Credit", func(t *testing.T) {
			require.NoError(t, userRepo.CreditCredits(ctx, user.ID, 50))

			stored, err := userRepo.ByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(110), stored.Credits)
		})

		t.Run("UpdateNeverTouchesBalance", func(t *testing.T) {
			stored, err := userRepo.ByID(ctx, user.ID)
			require.NoError(t, err)

			stale := *stored
			stale.FirstName = "Renamed"
			stale.Credits = 0
			require.NoError(t, userRepo.Update(ctx, stale))

			reloaded, err := userRepo.ByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "Renamed", reloaded.FirstName)
			assert.Equal(t, int64(110), reloaded.Credits)
		})

		return nil
	})
	finishDBTest(t, err)
}

func TestCampaignRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		campaignRepo := NewCampaignRepository(testDB.DB)
		ctx := context.Background()

		owner, err := fixtures.CreateTestUser(100)
		require.NoError(t, err)
		other, err := fixtures.CreateTestUser(100)
		require.NoError(t, err)

		campaign, err := fixtures.CreateTestCampaign(owner.ID, models.CampaignStatusRunning)
		require.NoError(t, err)

		t.Run("ByUUIDAndUserIsOwnerScoped", func(t *testing.T) {
			found, err := campaignRepo.ByUUIDAndUser(ctx, campaign.UUID.String(), owner.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, campaign.UUID, found.UUID)

			invisible, err := campaignRepo.ByUUIDAndUser(ctx, campaign.UUID.String(), other.ID)
			require.NoError(t, err)
			assert.Nil(t, invisible)
		})

		t.Run("ListByStatus", func(t *testing.T) {
			running, err := campaignRepo.ListByStatus(ctx, models.CampaignStatusRunning, 10, 0)
			require.NoError(t, err)
			require.Len(t, running, 1)
			assert.Equal(t, campaign.UUID, running[0].UUID)

			completed, err := campaignRepo.ListByStatus(ctx, models.CampaignStatusCompleted, 10, 0)
			require.NoError(t, err)
			assert.Empty(t, completed)
		})

		t.Run("UpdateFromActiveStoresResults", func(t *testing.T) {
			found, err := campaignRepo.ByUUIDAndUser(ctx, campaign.UUID.String(), owner.ID)
			require.NoError(t, err)

			found.Status = models.CampaignStatusCompleted
			found.ResultData = testingutil.CreateTestResults(3)
			found.CompletedRequests = 3
			found.ResultHashtags = []string{"travel", "tag0"}
			changed, err := campaignRepo.UpdateFromActive(ctx, *found)
			require.NoError(t, err)
			assert.True(t, changed)

			reloaded, err := campaignRepo.ByUUIDAndUser(ctx, campaign.UUID.String(), owner.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
			assert.Len(t, reloaded.ResultData, 3)
			assert.Equal(t, []string{"travel", "tag0"}, []string(reloaded.ResultHashtags))
		})

		t.Run("UpdateFromActiveRefusesTerminal", func(t *testing.T) {
			stale, err := campaignRepo.ByUUIDAndUser(ctx, campaign.UUID.String(), owner.ID)
			require.NoError(t, err)
			require.Equal(t, models.CampaignStatusCompleted, stale.Status)

			// A stale poller mapping a timeout to failed must not win
			stale.Status = models.CampaignStatusFailed
			stale.ResultData = nil
			stale.CompletedRequests = 0
			changed, err := campaignRepo.UpdateFromActive(ctx, *stale)
			require.NoError(t, err)
			assert.False(t, changed)

			reloaded, err := campaignRepo.ByUUIDAndUser(ctx, campaign.UUID.String(), owner.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
			assert.Len(t, reloaded.ResultData, 3)
		})

		t.Run("CountByUserAndStatus", func(t *testing.T) {
			n, err := campaignRepo.CountByUserAndStatus(ctx, owner.ID, models.CampaignStatusCompleted)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			n, err = campaignRepo.CountByUserAndStatus(ctx, other.ID, models.CampaignStatusCompleted)
			require.NoError(t, err)
			assert.Zero(t, n)
		})

		return nil
	})
	finishDBTest(t, err)
}

func TestCreditTransactionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		creditRepo := NewCreditTransactionRepository(testDB.DB)
		ctx := context.Background()

		user, err := fixtures.CreateTestUser(100)
		require.NoError(t, err)

		_, err = fixtures.CreateTestLedgerEntry(user.ID, 50, models.CreditTransactionTypePurchase, 100)
		require.NoError(t, err)
		usage, err := fixtures.CreateTestLedgerEntry(user.ID, -30, models.CreditTransactionTypeUsage, 150)
		require.NoError(t, err)
		_, err = fixtures.CreateTestLedgerEntry(user.ID, -40, models.CreditTransactionTypeUsage, 120)
		require.NoError(t, err)
		_, err = fixtures.CreateTestLedgerEntry(user.ID, 30, models.CreditTransactionTypeRefund, 80)
		require.NoError(t, err)

		t.Run("SumAbsByType", func(t *testing.T) {
			sum, err := creditRepo.SumAbsByType(ctx, user.ID, models.CreditTransactionTypeUsage)
			require.NoError(t, err)
			assert.Equal(t, int64(70), sum)

			sum, err = creditRepo.SumAbsByType(ctx, user.ID, models.CreditTransactionTypePurchase)
			require.NoError(t, err)
			assert.Equal(t, int64(50), sum)

			sum, err = creditRepo.SumAbsByType(ctx, user.ID, models.CreditTransactionTypeRefund)
			require.NoError(t, err)
			assert.Equal(t, int64(30), sum)
		})

		t.Run("ListByUserNewestFirst", func(t *testing.T) {
			entries, err := creditRepo.ListByUser(ctx, user.ID, 10, 0)
			require.NoError(t, err)
			require.Len(t, entries, 4)
			for i := 1; i < len(entries); i++ {
				assert.GreaterOrEqual(t, entries[i-1].ID, entries[i].ID)
			}
		})

		t.Run("FilterByType", func(t *testing.T) {
			entries, err := creditRepo.ByFilter(ctx, models.CreditTransactionFilter{
				UserID: &user.ID,
				Type:   utils.ToPtr(models.CreditTransactionTypeUsage),
			}, "", 0, 0)
			require.NoError(t, err)
			assert.Len(t, entries, 2)
		})

		t.Run("ByCorrelationID", func(t *testing.T) {
			require.NotNil(t, usage.CorrelationID)
			entries, err := creditRepo.ByCorrelationID(ctx, *usage.CorrelationID)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, usage.UUID, entries[0].UUID)
		})

		return nil
	})
	finishDBTest(t, err)
}
