package dto

import "time"

// Data Transfer Objects for account requests and responses

// RegisterRequest: payload for user registration
type RegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Password2 string `json:"password2" binding:"required"`
}

// LoginRequest: payload for user login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateAccountRequest: payload for a profile update, every field optional.
// Pointers tell "not sent" apart from "sent empty".
type UpdateAccountRequest struct {
	OldPassword     *string `json:"old_password,omitempty"`
	NewPassword     *string `json:"new_password,omitempty"`
	ConfirmPassword *string `json:"confirm_password,omitempty"`
	Username        *string `json:"username,omitempty" binding:"omitempty,max=150"`
	Email           *string `json:"email,omitempty"`
}

// UserResponse: read-only view of an account
type UserResponse struct {
	IsSuperuser bool   `json:"is_superuser"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

// LoginResponse: response payload after successful authentication.
// LastLogin is the previous login time, null on the first login.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"` // seconds
	User         UserResponse `json:"user"`
	LastLogin    *time.Time   `json:"last_login"`
}

// RefreshTokenRequest: payload for refreshing access token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshResponse: response payload after refreshing access token
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type RevokeTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RevokeTokenResponse struct {
	Message string `json:"message"`
}

// ValidationErrorResponse: field name (or non_field_errors) to messages
type ValidationErrorResponse struct {
	Errors map[string][]string `json:"errors"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
