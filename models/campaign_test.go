package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStatus(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, s := range []CampaignStatus{CampaignStatusPending, CampaignStatusRunning, CampaignStatusCompleted, CampaignStatusFailed} {
			assert.True(t, s.Valid(), "%s should be valid", s)
		}
		assert.False(t, CampaignStatus("archived").Valid())
		assert.False(t, CampaignStatus("").Valid())
	})

	t.Run("IsTerminal", func(t *testing.T) {
		assert.False(t, CampaignStatusPending.IsTerminal())
		assert.False(t, CampaignStatusRunning.IsTerminal())
		assert.True(t, CampaignStatusCompleted.IsTerminal())
		assert.True(t, CampaignStatusFailed.IsTerminal())
	})

	t.Run("ScanAndValue", func(t *testing.T) {
		var s CampaignStatus
		require.NoError(t, s.Scan("running"))
		assert.Equal(t, CampaignStatusRunning, s)

		require.NoError(t, s.Scan([]byte("completed")))
		assert.Equal(t, CampaignStatusCompleted, s)

		assert.Error(t, s.Scan(nil))
		assert.Error(t, s.Scan(42))
		assert.Error(t, s.Scan("archived"))

		v, err := CampaignStatusFailed.Value()
		require.NoError(t, err)
		assert.Equal(t, "failed", v)

		_, err = CampaignStatus("archived").Value()
		assert.Error(t, err)
	})
}

func TestCampaignCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    CampaignStatus
		to      CampaignStatus
		allowed bool
	}{
		{CampaignStatusPending, CampaignStatusRunning, true},
		{CampaignStatusPending, CampaignStatusFailed, true},
		{CampaignStatusPending, CampaignStatusCompleted, false},
		{CampaignStatusRunning, CampaignStatusCompleted, true},
		{CampaignStatusRunning, CampaignStatusFailed, true},
		{CampaignStatusRunning, CampaignStatusPending, false},
		{CampaignStatusCompleted, CampaignStatusRunning, false},
		{CampaignStatusCompleted, CampaignStatusFailed, false},
		{CampaignStatusFailed, CampaignStatusRunning, false},
		{CampaignStatusFailed, CampaignStatusCompleted, false},
	}

	for _, tt := range tests {
		c := &Campaign{Status: tt.from}
		assert.Equal(t, tt.allowed, c.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCampaignHasResults(t *testing.T) {
	c := &Campaign{}
	assert.False(t, c.HasResults())

	c.ResultData = ScrapeResults{{ID: "p1"}}
	assert.True(t, c.HasResults())
}

func TestScrapeResults(t *testing.T) {
	t.Run("ValueAndScanRoundTrip", func(t *testing.T) {
		in := ScrapeResults{
			{
				ID:            "p1",
				OwnerUsername: "alice",
				Hashtags:      []string{"travel", "sunset"},
				Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
				LikesCount:    1200,
				IsSponsored:   true,
			},
		}

		v, err := in.Value()
		require.NoError(t, err)

		var out ScrapeResults
		require.NoError(t, out.Scan(v))
		assert.Equal(t, in, out)
	})

	t.Run("NilValue", func(t *testing.T) {
		var r ScrapeResults
		v, err := r.Value()
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("ScanNil", func(t *testing.T) {
		r := ScrapeResults{{ID: "stale"}}
		require.NoError(t, r.Scan(nil))
		assert.Nil(t, r)
	})

	t.Run("ScanUnsupportedType", func(t *testing.T) {
		var r ScrapeResults
		assert.Error(t, r.Scan(42))
	})

	t.Run("ProviderFieldNames", func(t *testing.T) {
		// Raw dataset items unmarshal without remapping
		raw := `[{"id":"p1","ownerUsername":"alice","ownerFullName":"Alice Doe","shortCode":"Cabc","likesCount":12,"commentsCount":3,"isSponsored":true,"hashtags":["travel"]}]`

		var out ScrapeResults
		require.NoError(t, json.Unmarshal([]byte(raw), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "alice", out[0].OwnerUsername)
		assert.Equal(t, "Alice Doe", out[0].OwnerFullName)
		assert.Equal(t, "Cabc", out[0].ShortCode)
		assert.Equal(t, int64(12), out[0].LikesCount)
		assert.True(t, out[0].IsSponsored)
	})
}

func TestUserFullName(t *testing.T) {
	u := &User{Email: "solo@example.com"}
	assert.Equal(t, "solo@example.com", u.FullName())

	u.FirstName = "Grace"
	assert.Equal(t, "Grace", u.FullName())

	u.LastName = "Hopper"
	assert.Equal(t, "Grace Hopper", u.FullName())
}

func TestCreditTransactionTypes(t *testing.T) {
	assert.Equal(t, "purchase", string(CreditTransactionTypePurchase))
	assert.Equal(t, "usage", string(CreditTransactionTypeUsage))
	assert.Equal(t, "refund", string(CreditTransactionTypeRefund))

	assert.Equal(t, "credit_transactions", CreditTransaction{}.TableName())
	assert.Equal(t, "campaigns", Campaign{}.TableName())
	assert.Equal(t, "users", User{}.TableName())
}
