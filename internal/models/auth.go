package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims carries the authenticated identity through request handling.
type JWTClaims struct {
	UserID     string  `json:"user_id"`
	Email      string  `json:"email"`
	Role       Role    `json:"role"`
	Department *string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// LoginRequest is the credentials payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`

	// Request metadata captured for the activity trail.
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// SignupRequest registers a new account after OTP verification.
type SignupRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       Role   `json:"role" validate:"required,oneof=admin principal hod faculty"`
	Department string `json:"department"`
}

// SendOTPRequest asks for a signup verification code.
type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

// VerifyOTPRequest confirms the emailed code.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

// UpdateProfileRequest mutates the caller's own account. Empty fields
// are left unchanged.
type UpdateProfileRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Password   string `json:"password" validate:"omitempty,min=6"`
}

// AuthResponse bundles the issued token with the account.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
	User      *User     `json:"user"`
}
