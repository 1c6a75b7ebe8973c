package dto

// GetStatsRequest represents the request for a user's dashboard statistics
type GetStatsRequest struct {
	UserID uint `json:"-"`
}

// GetStatsResponse represents aggregated dashboard statistics
type GetStatsResponse struct {
	Message            string `json:"message"`
	TotalCampaigns     int64  `json:"total_campaigns"`
	CompletedCampaigns int64  `json:"completed_campaigns"`
	RunningCampaigns   int64  `json:"running_campaigns"`
	FailedCampaigns    int64  `json:"failed_campaigns"`
	RemainingCredits   int64  `json:"remaining_credits"`
	UsedCredits        int64  `json:"used_credits"`
	TotalCredits       int64  `json:"total_credits"`
}
