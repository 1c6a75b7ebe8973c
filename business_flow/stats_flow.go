// Package businessflow contains the core business logic and use cases for account statistics
package businessflow

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/repository"
)

// Incremented when the balance cache and the ledger disagree for a user.
// A non-zero rate means a credit mutation bypassed the ledger.
var ledgerDivergenceTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "credit_ledger_divergence_total",
		Help: "Number of stats computations where the cached balance and the ledger disagreed",
	},
)

// StatsFlow computes per-account campaign and credit statistics
type StatsFlow interface {
	GetStats(ctx context.Context, req *dto.GetStatsRequest, metadata *ClientMetadata) (*dto.GetStatsResponse, error)
}

// StatsFlowImpl implements the stats business flow
type StatsFlowImpl struct {
	userRepo     repository.UserRepository
	campaignRepo repository.CampaignRepository
	creditRepo   repository.CreditTransactionRepository
}

// NewStatsFlow creates a new stats flow instance
func NewStatsFlow(
	userRepo repository.UserRepository,
	campaignRepo repository.CampaignRepository,
	creditRepo repository.CreditTransactionRepository,
) StatsFlow {
	return &StatsFlowImpl{
		userRepo:     userRepo,
		campaignRepo: campaignRepo,
		creditRepo:   creditRepo,
	}
}

// GetStats aggregates campaign counts and credit totals for one user.
// Credit figures are derived from the ledger; the cached balance only
// contributes the remaining amount.
func (f *StatsFlowImpl) GetStats(ctx context.Context, req *dto.GetStatsRequest, metadata *ClientMetadata) (*dto.GetStatsResponse, error) {
	user, err := getUser(ctx, f.userRepo, req.UserID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}

	total, err := f.campaignRepo.Count(ctx, models.CampaignFilter{UserID: &req.UserID})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_COUNT_FAILED", "Failed to count campaigns", err)
	}

	completed, err := f.campaignRepo.CountByUserAndStatus(ctx, req.UserID, models.CampaignStatusCompleted)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_COUNT_FAILED", "Failed to count campaigns", err)
	}

	running, err := f.campaignRepo.CountByUserAndStatus(ctx, req.UserID, models.CampaignStatusRunning)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_COUNT_FAILED", "Failed to count campaigns", err)
	}

	failed, err := f.campaignRepo.CountByUserAndStatus(ctx, req.UserID, models.CampaignStatusFailed)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_COUNT_FAILED", "Failed to count campaigns", err)
	}

	usageSum, err := f.creditRepo.SumAbsByType(ctx, req.UserID, models.CreditTransactionTypeUsage)
	if err != nil {
		return nil, NewBusinessError("LEDGER_SUM_FAILED", "Failed to sum ledger entries", err)
	}
	refundSum, err := f.creditRepo.SumAbsByType(ctx, req.UserID, models.CreditTransactionTypeRefund)
	if err != nil {
		return nil, NewBusinessError("LEDGER_SUM_FAILED", "Failed to sum ledger entries", err)
	}
	purchaseSum, err := f.creditRepo.SumAbsByType(ctx, req.UserID, models.CreditTransactionTypePurchase)
	if err != nil {
		return nil, NewBusinessError("LEDGER_SUM_FAILED", "Failed to sum ledger entries", err)
	}

	remaining := user.Credits

	// Refunds cancel earlier usage, never exceed it in a consistent ledger
	used := usageSum - refundSum
	if used < 0 {
		ledgerDivergenceTotal.Inc()
		used = 0
	}

	// The initial signup grant is not ledger-recorded, so remaining+used can
	// exceed the recorded purchases for a healthy account
	totalCredits := remaining + used
	if purchaseSum > totalCredits {
		ledgerDivergenceTotal.Inc()
		totalCredits = purchaseSum
	}

	return &dto.GetStatsResponse{
		Message:            "Stats retrieved",
		TotalCampaigns:     total,
		CompletedCampaigns: completed,
		RunningCampaigns:   running,
		FailedCampaigns:    failed,
		RemainingCredits:   remaining,
		UsedCredits:        used,
		TotalCredits:       totalCredits,
	}, nil
}
