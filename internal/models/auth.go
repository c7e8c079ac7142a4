package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type values carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// RegisterRequest holds the payload for creating a new account.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// AuthResponse returns the issued tokens and user info. The token fields
// are cleared by the handler once they have been written into cookies.
type AuthResponse struct {
	AccessToken          *string   `json:"accessToken"`
	RefreshToken         *string   `json:"refreshToken"`
	ExpiresIn            int64     `json:"expiresIn"`
	User                 UserInfo  `json:"user"`
	RequiresVerification bool      `json:"requiresVerification"`
	IssuedAt             time.Time `json:"issuedAt"`
}

// ClearTokens drops the raw token values from the response body.
func (r *AuthResponse) ClearTokens() {
	r.AccessToken = nil
	r.RefreshToken = nil
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
	IP              string `json:"-"`
	UserAgent       string `json:"-"`
}

// SendVerificationRequest asks for a fresh email verification code.
type SendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyEmailRequest confirms ownership of an email address.
type VerifyEmailRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Code      string `json:"code" validate:"required,len=6,numeric"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	Verified bool     `json:"verified"`
}

// JWTClaims represents the JWT payload for access and refresh tokens.
// Refresh tokens omit the role claim.
type JWTClaims struct {
	UserID    string   `json:"userId"`
	Role      UserRole `json:"role,omitempty"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}
