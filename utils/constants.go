package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (7 days)
	AccessTokenTTL = 7 * 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds
	AccessTokenTTLSeconds = 7 * 24 * 3600
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Campaign constants
const (
	// MinRequestCount is the minimum number of posts a campaign may request
	MinRequestCount = 1

	// MaxRequestCount is the maximum number of posts a campaign may request
	MaxRequestCount = 300

	// MaxHashtagLength is the maximum length of a sanitized hashtag
	MaxHashtagLength = 50
)

// Billing constants
const (
	// CreditsPerPurchase is the number of credits granted per successful payment
	CreditsPerPurchase = 50
)
