package dto

import (
	"time"
)

// CreateCampaignRequest represents the request to create a new scraping campaign
type CreateCampaignRequest struct {
	UserID       uint   `json:"-"`
	Hashtag      string `json:"hashtag" validate:"required,max=50" example:"travel"`
	RequestCount int    `json:"request_count" validate:"required,min=1,max=300" example:"50"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message          string `json:"message"`
	UUID             string `json:"uuid"`
	Status           string `json:"status"`
	Hashtag          string `json:"hashtag"`
	RequestCount     int    `json:"request_count"`
	RemainingCredits int64  `json:"remaining_credits"`
	CreatedAt        string `json:"created_at"`
}

// GetCampaignRequest represents the request to get an existing campaign
type GetCampaignRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// CampaignDTO represents a campaign in API responses
type CampaignDTO struct {
	UUID              string           `json:"uuid"`
	Status            string           `json:"status"`
	Hashtag           string           `json:"hashtag"`
	RequestCount      int              `json:"request_count"`
	CompletedRequests int              `json:"completed_requests"`
	HasResults        bool             `json:"has_results"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         *time.Time       `json:"updated_at,omitempty"`
	ResultHashtags    []string         `json:"result_hashtags,omitempty"`
	Results           []ScrapedPostDTO `json:"results,omitempty"`
}

// ScrapedPostDTO represents a single scraped post in API responses
type ScrapedPostDTO struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Type          string    `json:"type"`
	ShortCode     string    `json:"short_code"`
	Caption       string    `json:"caption"`
	OwnerUsername string    `json:"owner_username"`
	OwnerFullName string    `json:"owner_full_name"`
	Hashtags      []string  `json:"hashtags"`
	Timestamp     time.Time `json:"timestamp"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
	IsSponsored   bool      `json:"is_sponsored"`
}

// ListCampaignsRequest represents the request to list a user's campaigns
type ListCampaignsRequest struct {
	UserID   uint `json:"-"`
	Page     int  `json:"page" validate:"omitempty,min=1"`
	PageSize int  `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCampaignsResponse represents the paginated campaign list
type ListCampaignsResponse struct {
	Message   string        `json:"message"`
	Campaigns []CampaignDTO `json:"campaigns"`
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
	Total     int64         `json:"total"`
}

// CheckCampaignStatusRequest represents the request to reconcile a campaign
// against its provider run
type CheckCampaignStatusRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// CheckCampaignStatusResponse represents the reconciled campaign state
type CheckCampaignStatusResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
	// ProviderStatus is the provider's raw run state, lowercased, when the
	// run is still in flight.
	ProviderStatus    string `json:"provider_status,omitempty"`
	CompletedRequests int    `json:"completed_requests"`
	HasResults        bool   `json:"has_results"`
}

// ExportCampaignRequest represents the request to download campaign results
type ExportCampaignRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
	Format string `json:"-"` // "xlsx" or "csv"
}

// ExportCampaignResponse carries the generated file
type ExportCampaignResponse struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}
