package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/models"
)

type statsFlowFixture struct {
	flow    StatsFlow
	users   *fakeUserRepo
	camps   *fakeCampaignRepo
	credits *fakeCreditRepo
}

func newStatsFlowFixture() *statsFlowFixture {
	f := &statsFlowFixture{
		users:   newFakeUserRepo(),
		camps:   newFakeCampaignRepo(),
		credits: newFakeCreditRepo(),
	}
	f.flow = NewStatsFlow(f.users, f.camps, f.credits)
	return f
}

func (f *statsFlowFixture) addLedgerEntry(t *testing.T, userID uint, amount int64, txType models.CreditTransactionType) {
	t.Helper()
	require.NoError(t, f.credits.Save(context.Background(), &models.CreditTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: "test entry",
	}))
}

func (f *statsFlowFixture) addCampaign(t *testing.T, userID uint, status models.CampaignStatus) {
	t.Helper()
	require.NoError(t, f.camps.Save(context.Background(), &models.Campaign{
		UserID:       userID,
		Status:       status,
		Hashtag:      "travel",
		RequestCount: 10,
	}))
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()

	t.Run("AggregatesCampaignsAndCredits", func(t *testing.T) {
		f := newStatsFlowFixture()

		// Signup grant 10, one purchase of 50, 70 spent, 20 refunded:
		// balance = 10 + 50 - 70 + 20 = 10
		user := f.users.addUser(models.User{Email: "stats@example.com", Credits: 10})

		f.addCampaign(t, user.ID, models.CampaignStatusCompleted)
		f.addCampaign(t, user.ID, models.CampaignStatusCompleted)
		f.addCampaign(t, user.ID, models.CampaignStatusRunning)
		f.addCampaign(t, user.ID, models.CampaignStatusFailed)
		f.addCampaign(t, user.ID, models.CampaignStatusPending)

		f.addLedgerEntry(t, user.ID, 50, models.CreditTransactionTypePurchase)
		f.addLedgerEntry(t, user.ID, -30, models.CreditTransactionTypeUsage)
		f.addLedgerEntry(t, user.ID, -40, models.CreditTransactionTypeUsage)
		f.addLedgerEntry(t, user.ID, 20, models.CreditTransactionTypeRefund)

		resp, err := f.flow.GetStats(ctx, &dto.GetStatsRequest{UserID: user.ID}, testMetadata())
		require.NoError(t, err)

		assert.Equal(t, int64(5), resp.TotalCampaigns)
		assert.Equal(t, int64(2), resp.CompletedCampaigns)
		assert.Equal(t, int64(1), resp.RunningCampaigns)
		assert.Equal(t, int64(1), resp.FailedCampaigns)

		assert.Equal(t, int64(10), resp.RemainingCredits)
		assert.Equal(t, int64(50), resp.UsedCredits)
		// remaining + used covers the grant plus the purchase
		assert.Equal(t, int64(60), resp.TotalCredits)
	})

	t.Run("FreshAccount", func(t *testing.T) {
		f := newStatsFlowFixture()
		user := f.users.addUser(models.User{Email: "fresh@example.com", Credits: models.InitialCreditGrant})

		resp, err := f.flow.GetStats(ctx, &dto.GetStatsRequest{UserID: user.ID}, testMetadata())
		require.NoError(t, err)

		assert.Zero(t, resp.TotalCampaigns)
		assert.Equal(t, int64(models.InitialCreditGrant), resp.RemainingCredits)
		assert.Zero(t, resp.UsedCredits)
		assert.Equal(t, int64(models.InitialCreditGrant), resp.TotalCredits)
	})

	t.Run("RefundExcessIsClampedToZero", func(t *testing.T) {
		f := newStatsFlowFixture()
		user := f.users.addUser(models.User{Email: "clamp@example.com", Credits: 10})

		// A refund without matching usage should never produce negative usage
		f.addLedgerEntry(t, user.ID, 30, models.CreditTransactionTypeRefund)

		resp, err := f.flow.GetStats(ctx, &dto.GetStatsRequest{UserID: user.ID}, testMetadata())
		require.NoError(t, err)
		assert.Zero(t, resp.UsedCredits)
		assert.Equal(t, int64(10), resp.TotalCredits)
	})

	t.Run("PurchaseExcessRaisesTotal", func(t *testing.T) {
		f := newStatsFlowFixture()

		// The balance cache lost a purchase somewhere: total falls back to
		// the recorded purchase sum rather than underreporting
		user := f.users.addUser(models.User{Email: "diverged@example.com", Credits: 0})
		f.addLedgerEntry(t, user.ID, 50, models.CreditTransactionTypePurchase)

		resp, err := f.flow.GetStats(ctx, &dto.GetStatsRequest{UserID: user.ID}, testMetadata())
		require.NoError(t, err)
		assert.Zero(t, resp.RemainingCredits)
		assert.Equal(t, int64(50), resp.TotalCredits)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		f := newStatsFlowFixture()

		_, err := f.flow.GetStats(ctx, &dto.GetStatsRequest{UserID: 404}, testMetadata())
		require.Error(t, err)
		assert.True(t, IsUserNotFound(err))
	})
}
