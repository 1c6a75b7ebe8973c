package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScrapeResult is a single scraped post as returned by the scraping
// provider. JSON tags follow the provider's dataset item schema so raw
// dataset payloads unmarshal directly.
type ScrapeResult struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Type          string    `json:"type"`
	ShortCode     string    `json:"shortCode"`
	Caption       string    `json:"caption"`
	OwnerID       string    `json:"ownerId"`
	OwnerUsername string    `json:"ownerUsername"`
	OwnerFullName string    `json:"ownerFullName"`
	Hashtags      []string  `json:"hashtags"`
	Timestamp     time.Time `json:"timestamp"`
	LikesCount    int64     `json:"likesCount"`
	CommentsCount int64     `json:"commentsCount"`
	DisplayURL    string    `json:"displayUrl"`
	IsSponsored   bool      `json:"isSponsored"`
}

// ScrapeResults is stored as a jsonb column on campaigns.
type ScrapeResults []ScrapeResult

func (r ScrapeResults) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *ScrapeResults) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into ScrapeResults", value)
	}
}
