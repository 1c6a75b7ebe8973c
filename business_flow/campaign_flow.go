// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/app/services"
	"github.com/scrapeflow/scrapeflow-api/config"
	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/repository"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	GetCampaign(ctx context.Context, req *dto.GetCampaignRequest, metadata *ClientMetadata) (*dto.CampaignDTO, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error)
	CheckCampaignStatus(ctx context.Context, req *dto.CheckCampaignStatusRequest, metadata *ClientMetadata) (*dto.CheckCampaignStatusResponse, error)
	// ReconcileRunningCampaigns polls the provider for every running campaign.
	// Used by the background scheduler; reuses the same idempotent
	// reconciliation path as CheckCampaignStatus.
	ReconcileRunningCampaigns(ctx context.Context, batchSize int) (int, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	userRepo     repository.UserRepository
	creditRepo   repository.CreditTransactionRepository
	auditRepo    repository.AuditLogRepository
	apifyClient  services.ApifyClient
	txRunner     repository.TxRunner
	cacheConfig  *config.CacheConfig
	rc           *redis.Client
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	userRepo repository.UserRepository,
	creditRepo repository.CreditTransactionRepository,
	auditRepo repository.AuditLogRepository,
	apifyClient services.ApifyClient,
	txRunner repository.TxRunner,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		userRepo:     userRepo,
		creditRepo:   creditRepo,
		auditRepo:    auditRepo,
		apifyClient:  apifyClient,
		txRunner:     txRunner,
		cacheConfig:  cacheConfig,
		rc:           rc,
	}
}

var hashtagInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// NormalizeHashtag strips a leading '#' and removes every character outside
// [a-zA-Z0-9_]. Returns ErrInvalidHashtag when nothing remains.
func NormalizeHashtag(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "#")
	clean = hashtagInvalidChars.ReplaceAllString(clean, "")
	if clean == "" {
		return "", ErrInvalidHashtag
	}
	if len(clean) > utils.MaxHashtagLength {
		clean = clean[:utils.MaxHashtagLength]
	}
	return clean, nil
}

// CreateCampaign handles the complete campaign creation process: debit
// credits and create the pending campaign in one transaction, start the
// provider run, then either promote the campaign to running or compensate
// with a refund entry and mark it failed.
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	hashtag, err := s.validateCreateCampaignRequest(req)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}

	user, err := getUser(ctx, s.userRepo, req.UserID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}

	cost := int64(req.RequestCount)

	// Transaction #1: guarded debit, pending campaign, usage ledger entry
	var campaign *models.Campaign
	err = s.txRunner.Run(ctx, func(txCtx context.Context) error {
		var err error
		campaign, err = s.createCampaign(txCtx, user, hashtag, req.RequestCount, cost)
		return err
	})
	if err != nil {
		errMsg := fmt.Sprintf("Campaign creation failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionCampaignFailed, errMsg, false, &errMsg, metadata)
		if IsInsufficientCredits(err) {
			return nil, NewBusinessError("INSUFFICIENT_CREDITS", "Not enough credits for this campaign", err)
		}
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	// Start the provider run outside any database transaction
	jobID, startErr := s.apifyClient.StartRun(ctx, hashtag, req.RequestCount)
	if startErr != nil {
		// Transaction #2': refund entry, credit back, mark failed
		if compErr := s.compensateFailedStart(ctx, user, campaign, cost, startErr); compErr != nil {
			errMsg := fmt.Sprintf("Compensation after failed start did not complete: %s", compErr.Error())
			_ = s.createAuditLog(ctx, user, models.AuditActionCampaignFailed, errMsg, false, &errMsg, metadata)
			return nil, NewBusinessError("CAMPAIGN_COMPENSATION_FAILED", "Campaign could not be started and the refund failed", compErr)
		}

		errMsg := fmt.Sprintf("Scraping run could not be started for campaign %s: %s", campaign.UUID.String(), startErr.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionCreditsRefunded, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("JOB_START_FAILED", "Scraping job could not be started, credits were refunded", ErrJobStartFailed)
	}

	// Transaction #2: record the external job and promote to running
	campaign.ExternalJobID = &jobID
	campaign.Status = models.CampaignStatusRunning
	err = s.txRunner.Run(ctx, func(txCtx context.Context) error {
		return s.campaignRepo.Update(txCtx, *campaign)
	})
	if err != nil {
		// The run started but was never recorded. Without the job ID the
		// campaign can never be polled, so treat it like a failed start.
		if compErr := s.compensateFailedStart(ctx, user, campaign, cost, err); compErr != nil {
			errMsg := fmt.Sprintf("Compensation after failed promotion did not complete: %s", compErr.Error())
			_ = s.createAuditLog(ctx, user, models.AuditActionCampaignFailed, errMsg, false, &errMsg, metadata)
			return nil, NewBusinessError("CAMPAIGN_COMPENSATION_FAILED", "Campaign could not be promoted and the refund failed", compErr)
		}

		errMsg := fmt.Sprintf("Failed to promote campaign %s to running: %s", campaign.UUID.String(), err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionCreditsRefunded, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("CAMPAIGN_PROMOTION_FAILED", "Campaign could not be promoted to running, credits were refunded", ErrJobStartFailed)
	}

	msg := fmt.Sprintf("Campaign created and started: %s", campaign.UUID.String())
	_ = s.createAuditLog(ctx, user, models.AuditActionCampaignStarted, msg, true, nil, metadata)

	resp := &dto.CreateCampaignResponse{
		Message:          "Campaign created successfully",
		UUID:             campaign.UUID.String(),
		Status:           string(campaign.Status),
		Hashtag:          campaign.Hashtag,
		RequestCount:     campaign.RequestCount,
		RemainingCredits: user.Credits - cost,
		CreatedAt:        campaign.CreatedAt.Format(time.RFC3339),
	}

	return resp, nil
}

// createCampaign runs inside transaction #1
func (s *CampaignFlowImpl) createCampaign(ctx context.Context, user *models.User, hashtag string, requestCount int, cost int64) (*models.Campaign, error) {
	debited, err := s.userRepo.DebitCredits(ctx, user.ID, cost)
	if err != nil {
		return nil, err
	}
	if !debited {
		return nil, ErrInsufficientCredits
	}

	campaign := &models.Campaign{
		UserID:       user.ID,
		Status:       models.CampaignStatusPending,
		Hashtag:      hashtag,
		RequestCount: requestCount,
	}
	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, err
	}

	entry := &models.CreditTransaction{
		CorrelationID: utils.ToPtr(campaign.UUID),
		UserID:        user.ID,
		Amount:        -cost,
		Type:          models.CreditTransactionTypeUsage,
		Description:   fmt.Sprintf("Scraping campaign #%s (%d posts)", hashtag, requestCount),
		BalanceBefore: user.Credits,
		BalanceAfter:  user.Credits - cost,
	}
	if err := s.creditRepo.Save(ctx, entry); err != nil {
		return nil, err
	}

	return campaign, nil
}

// compensateFailedStart runs transaction #2': the refund entry and the
// balance credit happen atomically with the failed transition.
func (s *CampaignFlowImpl) compensateFailedStart(ctx context.Context, user *models.User, campaign *models.Campaign, cost int64, cause error) error {
	return s.txRunner.Run(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.CreditCredits(txCtx, user.ID, cost); err != nil {
			return err
		}

		entry := &models.CreditTransaction{
			CorrelationID: utils.ToPtr(campaign.UUID),
			UserID:        user.ID,
			Amount:        cost,
			Type:          models.CreditTransactionTypeRefund,
			Description:   fmt.Sprintf("Refund for campaign #%s: %s", campaign.Hashtag, cause.Error()),
			BalanceBefore: user.Credits - cost,
			BalanceAfter:  user.Credits,
		}
		if err := s.creditRepo.Save(txCtx, entry); err != nil {
			return err
		}

		campaign.Status = models.CampaignStatusFailed
		_, err := s.campaignRepo.UpdateFromActive(txCtx, *campaign)
		return err
	})
}

func (s *CampaignFlowImpl) validateCreateCampaignRequest(req *dto.CreateCampaignRequest) (string, error) {
	if req == nil {
		return "", ErrHashtagRequired
	}
	if strings.TrimSpace(req.Hashtag) == "" {
		return "", ErrHashtagRequired
	}
	hashtag, err := NormalizeHashtag(req.Hashtag)
	if err != nil {
		return "", err
	}
	if req.RequestCount < utils.MinRequestCount || req.RequestCount > utils.MaxRequestCount {
		return "", ErrInvalidRequestCount
	}
	return hashtag, nil
}

// GetCampaign returns a campaign with its stored results
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, req *dto.GetCampaignRequest, metadata *ClientMetadata) (*dto.CampaignDTO, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	out := ToCampaignDTO(*campaign, true)
	return &out, nil
}

// ListCampaigns returns the user's campaigns, newest first, without result payloads
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error) {
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

	campaigns, err := s.campaignRepo.ListByUser(ctx, req.UserID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	total, err := s.campaignRepo.Count(ctx, models.CampaignFilter{UserID: &req.UserID})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_COUNT_FAILED", "Failed to count campaigns", err)
	}

	out := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, ToCampaignDTO(*c, false))
	}

	return &dto.ListCampaignsResponse{
		Message:   "Campaigns retrieved",
		Campaigns: out,
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
	}, nil
}

// CheckCampaignStatus reconciles the campaign against the provider run. The
// operation is idempotent: terminal campaigns return their stored state
// without touching the provider.
func (s *CampaignFlowImpl) CheckCampaignStatus(ctx context.Context, req *dto.CheckCampaignStatusRequest, metadata *ClientMetadata) (*dto.CheckCampaignStatusResponse, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	if campaign.IsTerminal() {
		return &dto.CheckCampaignStatusResponse{
			Message:           "Campaign already finished",
			UUID:              campaign.UUID.String(),
			Status:            string(campaign.Status),
			CompletedRequests: campaign.CompletedRequests,
			HasResults:        campaign.HasResults(),
		}, nil
	}

	if campaign.ExternalJobID == nil {
		return nil, NewBusinessError("JOB_NOT_STARTED", "Campaign has no scraping job to check", ErrJobNotStarted)
	}

	// Throttle provider polls with a short-lived cached response
	if cached := s.cachedPollResponse(ctx, campaign.UUID.String()); cached != nil {
		return cached, nil
	}

	resp, err := s.reconcile(ctx, campaign)
	if err != nil {
		return nil, err
	}

	s.cachePollResponse(ctx, campaign.UUID.String(), resp)

	owner := &models.User{ID: campaign.UserID}
	if campaign.Status == models.CampaignStatusCompleted {
		msg := fmt.Sprintf("Campaign completed: %s (%d posts)", campaign.UUID.String(), campaign.CompletedRequests)
		_ = s.createAuditLog(ctx, owner, models.AuditActionCampaignCompleted, msg, true, nil, metadata)
	}
	if campaign.Status == models.CampaignStatusFailed {
		msg := fmt.Sprintf("Campaign failed: %s", campaign.UUID.String())
		_ = s.createAuditLog(ctx, owner, models.AuditActionCampaignFailed, msg, false, nil, metadata)
	}

	return resp, nil
}

// reconcile drives one poll cycle for a running campaign. Provider errors
// are mapped to a failed run so campaigns cannot hang on an unreachable
// provider.
func (s *CampaignFlowImpl) reconcile(ctx context.Context, campaign *models.Campaign) (*dto.CheckCampaignStatusResponse, error) {
	status, raw, err := s.apifyClient.RunStatus(ctx, *campaign.ExternalJobID)
	if err != nil {
		status = services.RunStatusFailed
	}

	switch status {
	case services.RunStatusSucceeded:
		results, fetchErr := s.apifyClient.RunResults(ctx, *campaign.ExternalJobID)
		if fetchErr != nil {
			// The dataset may lag behind the run state; leave the campaign
			// running so a later poll can pick the results up.
			return nil, NewBusinessError("RESULTS_UNAVAILABLE", "Results are not available yet", ErrResultsUnavailable)
		}

		campaign.ResultData = results
		campaign.CompletedRequests = len(results)
		campaign.ResultHashtags = distinctHashtags(results)
		campaign.Status = models.CampaignStatusCompleted
		won, err := s.persistTerminal(ctx, campaign)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to store campaign results", err)
		}
		if !won {
			return s.reloadFinished(ctx, campaign)
		}

		return &dto.CheckCampaignStatusResponse{
			Message:           "Campaign completed",
			UUID:              campaign.UUID.String(),
			Status:            string(campaign.Status),
			CompletedRequests: campaign.CompletedRequests,
			HasResults:        campaign.HasResults(),
		}, nil

	case services.RunStatusFailed, services.RunStatusAborted:
		campaign.Status = models.CampaignStatusFailed
		won, err := s.persistTerminal(ctx, campaign)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to mark campaign failed", err)
		}
		if !won {
			return s.reloadFinished(ctx, campaign)
		}

		return &dto.CheckCampaignStatusResponse{
			Message:        "Campaign failed",
			UUID:           campaign.UUID.String(),
			Status:         string(campaign.Status),
			ProviderStatus: strings.ToLower(raw),
		}, nil

	default:
		// Still in flight; relay the provider's raw state without persisting
		return &dto.CheckCampaignStatusResponse{
			Message:           "Campaign is still running",
			UUID:              campaign.UUID.String(),
			Status:            string(campaign.Status),
			ProviderStatus:    strings.ToLower(raw),
			CompletedRequests: campaign.CompletedRequests,
		}, nil
	}
}

// persistTerminal writes a terminal transition guarded on the stored row
// still being active. Returns false when a concurrent poller finished the
// campaign first.
func (s *CampaignFlowImpl) persistTerminal(ctx context.Context, campaign *models.Campaign) (bool, error) {
	won := false
	err := s.txRunner.Run(ctx, func(txCtx context.Context) error {
		var err error
		won, err = s.campaignRepo.UpdateFromActive(txCtx, *campaign)
		return err
	})
	return won, err
}

// reloadFinished reports the state the winning poller stored
func (s *CampaignFlowImpl) reloadFinished(ctx context.Context, campaign *models.Campaign) (*dto.CheckCampaignStatusResponse, error) {
	stored, err := s.campaignRepo.ByID(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if stored != nil {
		*campaign = *stored
	}

	return &dto.CheckCampaignStatusResponse{
		Message:           "Campaign already finished",
		UUID:              campaign.UUID.String(),
		Status:            string(campaign.Status),
		CompletedRequests: campaign.CompletedRequests,
		HasResults:        campaign.HasResults(),
	}, nil
}

// distinctHashtags collects the unique hashtags across all scraped posts,
// preserving first-seen order
func distinctHashtags(results []models.ScrapeResult) pq.StringArray {
	seen := make(map[string]bool)
	var tags pq.StringArray
	for _, post := range results {
		for _, tag := range post.Hashtags {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// ReconcileRunningCampaigns is the scheduler entry point
func (s *CampaignFlowImpl) ReconcileRunningCampaigns(ctx context.Context, batchSize int) (int, error) {
	campaigns, err := s.campaignRepo.ListByStatus(ctx, models.CampaignStatusRunning, batchSize, 0)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, campaign := range campaigns {
		if campaign.ExternalJobID == nil {
			continue
		}
		if _, err := s.reconcile(ctx, campaign); err != nil {
			continue
		}
		reconciled++
	}

	return reconciled, nil
}

func (s *CampaignFlowImpl) cachedPollResponse(ctx context.Context, campaignUUID string) *dto.CheckCampaignStatusResponse {
	if s.rc == nil || s.cacheConfig == nil || !s.cacheConfig.Enabled {
		return nil
	}
	key := redisKey(*s.cacheConfig, pollCacheKey(campaignUUID))
	bs, err := s.rc.Get(ctx, key).Bytes()
	if err != nil || len(bs) == 0 {
		return nil
	}
	var out dto.CheckCampaignStatusResponse
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil
	}
	return &out
}

func (s *CampaignFlowImpl) cachePollResponse(ctx context.Context, campaignUUID string, resp *dto.CheckCampaignStatusResponse) {
	if s.rc == nil || s.cacheConfig == nil || !s.cacheConfig.Enabled {
		return
	}
	// Terminal states come from storage on the next call anyway
	if resp.Status == string(models.CampaignStatusCompleted) || resp.Status == string(models.CampaignStatusFailed) {
		return
	}
	key := redisKey(*s.cacheConfig, pollCacheKey(campaignUUID))
	if bs, err := json.Marshal(resp); err == nil {
		_ = s.rc.Set(ctx, key, bs, s.cacheConfig.PollThrottleTTL).Err()
	}
}

func pollCacheKey(campaignUUID string) string {
	return "campaign:poll:" + campaignUUID
}

func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}

// getUser loads a user or maps the miss to a business error
func getUser(ctx context.Context, repo repository.UserRepository, userID uint) (*models.User, error) {
	user, err := repo.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// getCampaign loads a campaign scoped to its owner
func getCampaign(ctx context.Context, repo repository.CampaignRepository, uuidStr string, userID uint) (*models.Campaign, error) {
	if strings.TrimSpace(uuidStr) == "" {
		return nil, NewBusinessError("CAMPAIGN_UUID_REQUIRED", "Campaign UUID is required", ErrCampaignUUIDRequired)
	}
	campaign, err := repo.ByUUIDAndUser(ctx, uuidStr, userID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	return campaign, nil
}

func (s *CampaignFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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

	// Extract request ID from context if available
	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	if err := s.auditRepo.Save(ctx, audit); err != nil {
		return err
	}

	return nil
}
