// Package services contains external integrations and supporting services
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		7*24*time.Hour,
		"test-issuer",
		"test-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
}

func TestNewTokenService(t *testing.T) {
	t.Run("ValidConfiguration", func(t *testing.T) {
		service, err := createTestTokenService()
		require.NoError(t, err)
		assert.NotNil(t, service)
	})

	t.Run("MissingSecretKey", func(t *testing.T) {
		service, err := NewTokenService(15*time.Minute, 7*24*time.Hour, "test-issuer", "test-audience", "")
		assert.Error(t, err)
		assert.Nil(t, service)
	})
}

func TestGenerateTokens(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateTokens(42)
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)
	assert.NotEqual(t, accessToken, refreshToken)

	claims, err := service.ValidateToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(time.Now()))

	refreshClaims, err := service.ValidateToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.TokenType)
	assert.NotEqual(t, claims.TokenID, refreshClaims.TokenID)
}

func TestValidateToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	t.Run("Garbage", func(t *testing.T) {
		_, err := service.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongKey", func(t *testing.T) {
		other, err := NewTokenService(15*time.Minute, 7*24*time.Hour, "test-issuer", "test-audience", "a-different-secret-key-entirely!")
		require.NoError(t, err)

		accessToken, _, err := other.GenerateTokens(7)
		require.NoError(t, err)

		_, err = service.ValidateToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Expired", func(t *testing.T) {
		expiring, err := NewTokenService(-time.Minute, -time.Minute, "test-issuer", "test-audience", "test-secret-key-for-jwt-signing-32-chars")
		require.NoError(t, err)

		accessToken, _, err := expiring.GenerateTokens(7)
		require.NoError(t, err)

		_, err = expiring.ValidateToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestRefreshToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateTokens(42)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		newAccess, newRefresh, err := service.RefreshToken(refreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, newAccess)
		assert.NotEmpty(t, newRefresh)

		claims, err := service.ValidateToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.UserID)
	})

	t.Run("AccessTokenRejected", func(t *testing.T) {
		_, _, err := service.RefreshToken(accessToken)
		assert.Error(t, err)
	})

	t.Run("GarbageRejected", func(t *testing.T) {
		_, _, err := service.RefreshToken("not-a-jwt")
		assert.Error(t, err)
	})
}
