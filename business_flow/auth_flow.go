// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/app/services"
	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/repository"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

// AuthFlow handles signup and login
type AuthFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
}

// AuthFlowImpl implements the authentication business flow
type AuthFlowImpl struct {
	userRepo     repository.UserRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	txRunner     repository.TxRunner
}

// NewAuthFlow creates a new authentication flow instance
func NewAuthFlow(
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	txRunner repository.TxRunner,
) AuthFlow {
	return &AuthFlowImpl{
		userRepo:     userRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		txRunner:     txRunner,
	}
}

// Signup registers a new user with the initial credit grant
func (f *AuthFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := f.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if existing != nil {
		return nil, NewBusinessError("EMAIL_ALREADY_EXISTS", "Email already exists", ErrEmailAlreadyExists)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Credits:      models.InitialCreditGrant,
	}

	err = f.txRunner.Run(ctx, func(txCtx context.Context) error {
		return f.userRepo.Save(txCtx, user)
	})
	if err != nil {
		errMsg := fmt.Sprintf("Signup failed for %s: %s", email, err.Error())
		_ = f.createAuditLog(ctx, nil, models.AuditActionSignupCompleted, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	accessToken, refreshToken, err := f.tokenService.GenerateTokens(user.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	msg := fmt.Sprintf("User signed up: %s", user.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionSignupCompleted, msg, true, nil, metadata)

	return &dto.SignupResponse{
		Message:      "Signup successful",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		User:         ToUserDTO(*user),
	}, nil
}

// Login authenticates a user by email and password
func (f *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := f.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		errMsg := fmt.Sprintf("Login failed for %s: unknown email", email)
		_ = f.createAuditLog(ctx, nil, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		errMsg := fmt.Sprintf("Login failed for %s: incorrect password", email)
		_ = f.createAuditLog(ctx, user, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("INCORRECT_PASSWORD", "Incorrect password", ErrIncorrectPassword)
	}

	accessToken, refreshToken, err := f.tokenService.GenerateTokens(user.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	_ = f.userRepo.UpdateLastLogin(ctx, user.ID)

	msg := fmt.Sprintf("User logged in: %s", user.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionLoginSuccessful, msg, true, nil, metadata)

	return &dto.LoginResponse{
		Message:      "Login successful",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		User:         ToUserDTO(*user),
	}, nil
}

func (f *AuthFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil && user.ID != 0 {
		userID = &user.ID
	}

	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return f.auditRepo.Save(ctx, audit)
}
