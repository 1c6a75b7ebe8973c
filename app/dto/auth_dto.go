// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SignupRequest represents the signup form data
type SignupRequest struct {
	Email           string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password        string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name" validate:"omitempty,max=100" example:"John"`
	LastName        string `json:"last_name" validate:"omitempty,max=100" example:"Doe"`
}

// SignupResponse represents the response after successful signup
type SignupResponse struct {
	Message      string  `json:"message"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type" example:"Bearer"`
	ExpiresIn    int     `json:"expires_in" example:"604800"`
	User         UserDTO `json:"user"`
}

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Message      string  `json:"message"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type" example:"Bearer"`
	ExpiresIn    int     `json:"expires_in" example:"604800"`
	User         UserDTO `json:"user"`
}

// UserDTO represents user data for API responses
type UserDTO struct {
	ID          uint   `json:"id" example:"123"`
	UUID        string `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email       string `json:"email" example:"user@example.com"`
	FirstName   string `json:"first_name" example:"John"`
	LastName    string `json:"last_name" example:"Doe"`
	Credits     int64  `json:"credits" example:"10"`
	AutoRenewal bool   `json:"auto_renewal" example:"false"`
	CreatedAt   string `json:"created_at" example:"2024-01-15T10:30:00Z"`
}
