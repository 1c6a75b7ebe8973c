package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/scrapeflow/scrapeflow-api/utils"
)

// CampaignStatus represents the lifecycle state of a scraping campaign
type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

func (s CampaignStatus) String() string {
	return string(s)
}

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusPending, CampaignStatusRunning, CampaignStatusCompleted, CampaignStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

func (s *CampaignStatus) Scan(value interface{}) error {
	if value == nil {
		return fmt.Errorf("cannot scan nil into CampaignStatus")
	}
	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid campaign status: %s", *s)
	}
	return nil
}

func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid campaign status: %s", s)
	}
	return string(s), nil
}

// Campaign represents a hashtag scraping campaign
type Campaign struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UUID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	UserID uint      `gorm:"not null;index:idx_campaigns_user_id" json:"user_id"`

	Status CampaignStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_campaigns_status" json:"status"`

	Hashtag      string `gorm:"size:50;not null" json:"hashtag"`
	RequestCount int    `gorm:"not null" json:"request_count"`
	// CompletedRequests is the number of posts actually delivered, which may
	// be less than RequestCount when the provider returns fewer results.
	CompletedRequests int `gorm:"not null;default:0" json:"completed_requests"`

	ResultData ScrapeResults `gorm:"type:jsonb" json:"result_data,omitempty"`

	// ResultHashtags holds the distinct hashtags seen across all scraped
	// posts, filled in when the campaign completes.
	ResultHashtags pq.StringArray `gorm:"type:text[]" json:"result_hashtags,omitempty"`

	// ExternalJobID must be set before the campaign may become running.
	ExternalJobID *string `gorm:"size:255;index:idx_campaigns_external_job_id" json:"external_job_id,omitempty"`

	// FilePath is export bookkeeping only; it has no lifecycle effect.
	FilePath *string `gorm:"size:500" json:"file_path,omitempty"`

	CreatedAt *time.Time `gorm:"index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusPending
	}
	if c.CreatedAt == nil {
		c.CreatedAt = utils.UTCNowPtr()
	}
	return nil
}

func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// IsTerminal reports whether the campaign is in a terminal state.
func (c *Campaign) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// CanTransitionTo reports whether the transition to newStatus is allowed.
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusPending:
		return newStatus == CampaignStatusRunning || newStatus == CampaignStatusFailed
	case CampaignStatusRunning:
		return newStatus == CampaignStatusCompleted || newStatus == CampaignStatusFailed
	default:
		return false
	}
}

// HasResults reports whether scraped posts have been stored on the campaign.
func (c *Campaign) HasResults() bool {
	return len(c.ResultData) > 0
}

// CampaignFilter represents filter criteria for campaign queries
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	UserID        *uint           `json:"user_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	Hashtag       *string         `json:"hashtag,omitempty"`
	ExternalJobID *string         `json:"external_job_id,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
