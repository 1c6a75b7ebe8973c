// Package businessflow contains the core business logic and use cases for campaign and credit workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrEmailAlreadyExists = errors.New("email already exists")

	// Campaign-related errors
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignAccessDenied = errors.New("campaign access denied")
	ErrHashtagRequired      = errors.New("hashtag is required")
	ErrInvalidHashtag       = errors.New("hashtag contains no valid characters")
	ErrInvalidRequestCount  = errors.New("request count is out of range")
	ErrCampaignUUIDRequired = errors.New("campaign UUID is required")

	// Lifecycle errors
	ErrJobStartFailed       = errors.New("scraping job could not be started")
	ErrJobNotStarted        = errors.New("campaign has no scraping job to check")
	ErrResultsUnavailable   = errors.New("scraping results are not available yet")
	ErrCampaignNotCompleted = errors.New("campaign has not completed")

	// Credit-related errors
	ErrInsufficientCredits = errors.New("insufficient credits")

	// Billing callback errors
	ErrCallbackRequestNil      = errors.New("callback request is nil")
	ErrCallbackSignatureNeeded = errors.New("callback signature is required")
	ErrCallbackSignatureBad    = errors.New("callback signature verification failed")
	ErrPaymentRefRequired      = errors.New("payment reference is required")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsHashtagRequired(err error) bool {
	return errors.Is(err, ErrHashtagRequired)
}

func IsInvalidHashtag(err error) bool {
	return errors.Is(err, ErrInvalidHashtag)
}

func IsInvalidRequestCount(err error) bool {
	return errors.Is(err, ErrInvalidRequestCount)
}

func IsCampaignUUIDRequired(err error) bool {
	return errors.Is(err, ErrCampaignUUIDRequired)
}

func IsJobStartFailed(err error) bool {
	return errors.Is(err, ErrJobStartFailed)
}

func IsJobNotStarted(err error) bool {
	return errors.Is(err, ErrJobNotStarted)
}

func IsResultsUnavailable(err error) bool {
	return errors.Is(err, ErrResultsUnavailable)
}

func IsCampaignNotCompleted(err error) bool {
	return errors.Is(err, ErrCampaignNotCompleted)
}

func IsInsufficientCredits(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}

func IsCallbackRequestNil(err error) bool {
	return errors.Is(err, ErrCallbackRequestNil)
}

func IsCallbackSignatureNeeded(err error) bool {
	return errors.Is(err, ErrCallbackSignatureNeeded)
}

func IsCallbackSignatureBad(err error) bool {
	return errors.Is(err, ErrCallbackSignatureBad)
}

func IsPaymentRefRequired(err error) bool {
	return errors.Is(err, ErrPaymentRefRequired)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
