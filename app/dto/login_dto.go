// Package dto contains Data Transfer Objects for API request and response structures
package dto

import (
	"time"
)

// LoginRequest represents the request payload for staff login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"ops@tillboard.co.ke"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Login successful"`
	Data    struct {
		AccessToken  string    `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
		RefreshToken string    `json:"refresh_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
		TokenType    string    `json:"token_type" example:"Bearer"`
		ExpiresIn    int       `json:"expires_in" example:"86400"`
		Staff        StaffInfo `json:"staff"`
		ExpiresAt    time.Time `json:"expires_at" example:"2026-01-16T16:30:00Z"`
	} `json:"data"`
}

// StaffInfo represents staff information returned in login response
type StaffInfo struct {
	Email string `json:"email" example:"ops@tillboard.co.ke"`
}

// LogoutRequest represents the request payload for staff logout
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty" validate:"omitempty,max=2048"`
}

// LoginErrorResponse represents error responses for login operations
type LoginErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"Staff account not found"`
	Error   struct {
		Code    string `json:"code" example:"STAFF_NOT_FOUND"`
		Details string `json:"details,omitempty" example:"No staff account configured for the provided email"`
	} `json:"error"`
}

// Common error codes for login operations
const (
	ErrorStaffNotFound     = "STAFF_NOT_FOUND"
	ErrorIncorrectPassword = "INCORRECT_PASSWORD"
	ErrorStaffNotAllowed   = "STAFF_NOT_ALLOWED"
)
