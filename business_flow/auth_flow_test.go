package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/app/services"
	"github.com/scrapeflow/scrapeflow-api/models"
)

type authFlowFixture struct {
	flow   AuthFlow
	users  *fakeUserRepo
	audits *fakeAuditRepo
}

func newAuthFlowFixture(t *testing.T) *authFlowFixture {
	t.Helper()

	tokenService, err := services.NewTokenService(time.Hour, 24*time.Hour, "test-issuer", "test-audience", "test-secret-key")
	require.NoError(t, err)

	f := &authFlowFixture{
		users:  newFakeUserRepo(),
		audits: newFakeAuditRepo(),
	}
	f.flow = NewAuthFlow(f.users, f.audits, tokenService, &fakeTxRunner{})
	return f
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newAuthFlowFixture(t)

		resp, err := f.flow.Signup(ctx, &dto.SignupRequest{
			Email:           "New.User@Example.com",
			Password:        "SecurePass123!",
			ConfirmPassword: "SecurePass123!",
			FirstName:       "New",
			LastName:        "User",
		}, testMetadata())
		require.NoError(t, err)
		require.NotNil(t, resp)

		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "Bearer", resp.TokenType)

		// Emails are stored lowercased
		user, err := f.users.ByEmail(ctx, "new.user@example.com")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "new.user@example.com", user.Email)
		assert.Equal(t, int64(models.InitialCreditGrant), user.Credits)
		assert.NotEqual(t, "SecurePass123!", user.PasswordHash)

		// The signup grant is a starting balance, not a ledger event
		assert.Len(t, f.audits.byAction(models.AuditActionSignupCompleted), 1)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		f := newAuthFlowFixture(t)
		f.users.addUser(models.User{Email: "taken@example.com", Credits: 10})

		_, err := f.flow.Signup(ctx, &dto.SignupRequest{
			Email:           "Taken@Example.com",
			Password:        "SecurePass123!",
			ConfirmPassword: "SecurePass123!",
		}, testMetadata())
		require.Error(t, err)
		assert.True(t, IsEmailAlreadyExists(err))
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	seedUser := func(t *testing.T, f *authFlowFixture, email, password string) *models.User {
		t.Helper()
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		return f.users.addUser(models.User{
			Email:        email,
			PasswordHash: string(hash),
			Credits:      10,
		})
	}

	t.Run("Success", func(t *testing.T) {
		f := newAuthFlowFixture(t)
		user := seedUser(t, f, "login@example.com", "SecurePass123!")

		resp, err := f.flow.Login(ctx, &dto.LoginRequest{
			Email:    "Login@Example.com",
			Password: "SecurePass123!",
		}, testMetadata())
		require.NoError(t, err)

		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, user.UUID.String(), resp.User.UUID)

		stored, err := f.users.ByID(ctx, user.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLoginAt)
		assert.Len(t, f.audits.byAction(models.AuditActionLoginSuccessful), 1)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		f := newAuthFlowFixture(t)
		seedUser(t, f, "wrong@example.com", "SecurePass123!")

		_, err := f.flow.Login(ctx, &dto.LoginRequest{
			Email:    "wrong@example.com",
			Password: "NotThePassword1!",
		}, testMetadata())
		require.Error(t, err)
		assert.True(t, IsIncorrectPassword(err))
		assert.Len(t, f.audits.byAction(models.AuditActionLoginFailed), 1)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		f := newAuthFlowFixture(t)

		_, err := f.flow.Login(ctx, &dto.LoginRequest{
			Email:    "ghost@example.com",
			Password: "SecurePass123!",
		}, testMetadata())
		require.Error(t, err)
		assert.True(t, IsUserNotFound(err))
	})
}
