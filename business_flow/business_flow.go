// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// ToUserDTO converts a user model to UserDTO for API responses
func ToUserDTO(user models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:          user.ID,
		UUID:        user.UUID.String(),
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Credits:     user.Credits,
		AutoRenewal: utils.IsTrue(user.AutoRenewal),
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	}
}

// ToCampaignDTO converts a campaign model to CampaignDTO. Results are
// included only when includeResults is set; list endpoints keep payloads
// small by omitting them.
func ToCampaignDTO(campaign models.Campaign, includeResults bool) dto.CampaignDTO {
	out := dto.CampaignDTO{
		UUID:              campaign.UUID.String(),
		Status:            string(campaign.Status),
		Hashtag:           campaign.Hashtag,
		RequestCount:      campaign.RequestCount,
		CompletedRequests: campaign.CompletedRequests,
		HasResults:        campaign.HasResults(),
		UpdatedAt:         campaign.UpdatedAt,
	}
	if campaign.CreatedAt != nil {
		out.CreatedAt = *campaign.CreatedAt
	}
	if includeResults {
		out.ResultHashtags = []string(campaign.ResultHashtags)
		out.Results = make([]dto.ScrapedPostDTO, 0, len(campaign.ResultData))
		for _, post := range campaign.ResultData {
			out.Results = append(out.Results, ToScrapedPostDTO(post))
		}
	}
	return out
}

// ToScrapedPostDTO converts a scraped post to its API representation
func ToScrapedPostDTO(post models.ScrapeResult) dto.ScrapedPostDTO {
	return dto.ScrapedPostDTO{
		ID:            post.ID,
		URL:           post.URL,
		Type:          post.Type,
		ShortCode:     post.ShortCode,
		Caption:       post.Caption,
		OwnerUsername: post.OwnerUsername,
		OwnerFullName: post.OwnerFullName,
		Hashtags:      post.Hashtags,
		Timestamp:     post.Timestamp,
		LikesCount:    post.LikesCount,
		CommentsCount: post.CommentsCount,
		IsSponsored:   post.IsSponsored,
	}
}

// ToCreditTransactionDTO converts a ledger entry to its API representation
func ToCreditTransactionDTO(entry models.CreditTransaction) dto.CreditTransactionDTO {
	out := dto.CreditTransactionDTO{
		UUID:          entry.UUID.String(),
		Amount:        entry.Amount,
		Type:          string(entry.Type),
		Description:   entry.Description,
		BalanceBefore: entry.BalanceBefore,
		BalanceAfter:  entry.BalanceAfter,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.CorrelationID != nil {
		out.CorrelationID = utils.ToPtr(entry.CorrelationID.String())
	}
	return out
}
