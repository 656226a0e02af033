// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/app/services"
	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/repository"
	"github.com/pesaops/tillboard/utils"
	"golang.org/x/crypto/bcrypt"
)

// LoginFlow handles staff authentication business logic
type LoginFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Logout(ctx context.Context, accessToken string, metadata *ClientMetadata) error
}

// LoginFlowImpl implements the staff authentication flow. Staff
// accounts live in configuration, not the database; the audit trail is
// the only persisted side effect.
type LoginFlowImpl struct {
	security     *config.SecurityConfig
	tokenService services.TokenService
	auditRepo    repository.AuditLogRepository
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	security *config.SecurityConfig,
	tokenService services.TokenService,
	auditRepo repository.AuditLogRepository,
) LoginFlow {
	return &LoginFlowImpl{
		security:     security,
		tokenService: tokenService,
		auditRepo:    auditRepo,
	}
}

// Login authenticates a staff account against the configured
// credentials and allow-list and issues a token pair.
func (f *LoginFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, ok := f.security.StaffPasswordHash(email)
	if !ok {
		errMsg := fmt.Sprintf("Login failed for %s: unknown staff account", email)
		_ = f.createAuditLog(ctx, &email, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("STAFF_NOT_FOUND", "Staff account not found", ErrStaffNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		errMsg := fmt.Sprintf("Login failed for %s: incorrect password", email)
		_ = f.createAuditLog(ctx, &email, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("INCORRECT_PASSWORD", "Incorrect password", ErrIncorrectPassword)
	}

	if !f.security.IsEmailAllowed(email) {
		errMsg := fmt.Sprintf("Login failed for %s: not on the allow-list", email)
		_ = f.createAuditLog(ctx, &email, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("STAFF_NOT_ALLOWED", "Staff account is not allowed", ErrStaffNotAllowed)
	}

	accessToken, refreshToken, err := f.tokenService.GenerateTokens(email)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	msg := fmt.Sprintf("Staff %s logged in", email)
	_ = f.createAuditLog(ctx, &email, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	response := &dto.LoginResponse{
		Success: true,
		Message: "Login successful",
	}
	response.Data.AccessToken = accessToken
	response.Data.RefreshToken = refreshToken
	response.Data.TokenType = "Bearer"
	response.Data.ExpiresIn = int(utils.AccessTokenTTL.Seconds())
	response.Data.ExpiresAt = time.Now().UTC().Add(utils.AccessTokenTTL)
	response.Data.Staff = dto.StaffInfo{Email: email}

	return response, nil
}

// Logout revokes the presented access token.
func (f *LoginFlowImpl) Logout(ctx context.Context, accessToken string, metadata *ClientMetadata) error {
	claims, err := f.tokenService.ValidateToken(ctx, accessToken)
	if err != nil {
		return NewBusinessError("TOKEN_INVALID", "Invalid token", err)
	}

	if err := f.tokenService.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError("TOKEN_REVOCATION_FAILED", "Failed to revoke token", err)
	}

	msg := fmt.Sprintf("Staff %s logged out", claims.StaffEmail)
	_ = f.createAuditLog(ctx, &claims.StaffEmail, models.AuditActionLogout, msg, true, nil, metadata)
	return nil
}

func (f *LoginFlowImpl) createAuditLog(ctx context.Context, staffEmail *string, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		StaffEmail:   staffEmail,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		if requestIDStr, ok := requestID.(string); ok {
			audit.RequestID = &requestIDStr
		}
	}

	return f.auditRepo.Save(ctx, audit)
}
