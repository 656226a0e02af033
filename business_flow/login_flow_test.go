package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/app/services"
	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestLoginFlow(t *testing.T, security *config.SecurityConfig) (LoginFlow, services.TokenService, *fakeAuditRepo) {
	t.Helper()
	tokenService, err := services.NewTokenService(
		time.Hour, 24*time.Hour, "tillboard", "tillboard-api",
		false, "", "", "test-secret-key-that-is-long-enough", nil)
	require.NoError(t, err)

	auditRepo := &fakeAuditRepo{}
	return NewLoginFlow(security, tokenService, auditRepo), tokenService, auditRepo
}

func staffSecurityConfig(t *testing.T, email, password string, allowed ...string) *config.SecurityConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.SecurityConfig{
		StaffCredentials: []string{email + ":" + string(hash)},
		AllowedEmails:    allowed,
	}
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials issue a token pair", func(t *testing.T) {
		security := staffSecurityConfig(t, "ops@tillboard.co.ke", "CorrectHorse9!")
		flow, tokenService, auditRepo := newTestLoginFlow(t, security)

		resp, err := flow.Login(context.Background(), &dto.LoginRequest{
			Email:    "  Ops@Tillboard.co.ke ",
			Password: "CorrectHorse9!",
		}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.Data.AccessToken)
		assert.NotEmpty(t, resp.Data.RefreshToken)
		assert.Equal(t, "Bearer", resp.Data.TokenType)
		assert.Equal(t, "ops@tillboard.co.ke", resp.Data.Staff.Email)

		claims, err := tokenService.ValidateToken(context.Background(), resp.Data.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "ops@tillboard.co.ke", claims.StaffEmail)

		assert.Equal(t, models.AuditActionLoginSuccess, auditRepo.lastAction())
	})

	t.Run("unknown account", func(t *testing.T) {
		security := staffSecurityConfig(t, "ops@tillboard.co.ke", "CorrectHorse9!")
		flow, _, auditRepo := newTestLoginFlow(t, security)

		_, err := flow.Login(context.Background(), &dto.LoginRequest{
			Email:    "stranger@tillboard.co.ke",
			Password: "CorrectHorse9!",
		}, nil)
		require.Error(t, err)
		assert.True(t, IsStaffNotFound(err))
		assert.Equal(t, models.AuditActionLoginFailed, auditRepo.lastAction())
	})

	t.Run("wrong password", func(t *testing.T) {
		security := staffSecurityConfig(t, "ops@tillboard.co.ke", "CorrectHorse9!")
		flow, _, _ := newTestLoginFlow(t, security)

		_, err := flow.Login(context.Background(), &dto.LoginRequest{
			Email:    "ops@tillboard.co.ke",
			Password: "WrongHorse",
		}, nil)
		require.Error(t, err)
		assert.True(t, IsIncorrectPassword(err))
	})

	t.Run("valid credentials but not on the allow-list", func(t *testing.T) {
		security := staffSecurityConfig(t, "ops@tillboard.co.ke", "CorrectHorse9!", "admin@tillboard.co.ke")
		flow, _, _ := newTestLoginFlow(t, security)

		_, err := flow.Login(context.Background(), &dto.LoginRequest{
			Email:    "ops@tillboard.co.ke",
			Password: "CorrectHorse9!",
		}, nil)
		require.Error(t, err)
		assert.True(t, IsStaffNotAllowed(err))
	})
}

func TestLogout(t *testing.T) {
	security := staffSecurityConfig(t, "ops@tillboard.co.ke", "CorrectHorse9!")
	flow, tokenService, auditRepo := newTestLoginFlow(t, security)

	resp, err := flow.Login(context.Background(), &dto.LoginRequest{
		Email:    "ops@tillboard.co.ke",
		Password: "CorrectHorse9!",
	}, nil)
	require.NoError(t, err)

	err = flow.Logout(context.Background(), resp.Data.AccessToken, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AuditActionLogout, auditRepo.lastAction())

	// The revoked token no longer validates.
	_, err = tokenService.ValidateToken(context.Background(), resp.Data.AccessToken)
	require.Error(t, err)

	// And a second logout with it fails.
	err = flow.Logout(context.Background(), resp.Data.AccessToken, nil)
	require.Error(t, err)
}
