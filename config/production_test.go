package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsEmailAllowed(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []string
		email    string
		expected bool
	}{
		{"empty list allows everyone", nil, "ops@tillboard.co.ke", true},
		{"listed email allowed", []string{"ops@tillboard.co.ke"}, "ops@tillboard.co.ke", true},
		{"comparison is case insensitive", []string{"Ops@Tillboard.co.ke"}, "ops@tillboard.co.ke", true},
		{"whitespace trimmed", []string{" ops@tillboard.co.ke "}, "ops@tillboard.co.ke", true},
		{"unlisted email denied", []string{"admin@tillboard.co.ke"}, "ops@tillboard.co.ke", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &SecurityConfig{AllowedEmails: tt.allowed}
			assert.Equal(t, tt.expected, cfg.IsEmailAllowed(tt.email))
		})
	}
}

func TestStaffPasswordHash(t *testing.T) {
	cfg := &SecurityConfig{
		StaffCredentials: []string{
			"ops@tillboard.co.ke:$2a$12$hash-for-ops",
			"malformed-entry",
			"Admin@Tillboard.co.ke:$2a$12$hash:with:colons",
		},
	}

	t.Run("known account found", func(t *testing.T) {
		hash, ok := cfg.StaffPasswordHash("ops@tillboard.co.ke")
		assert.True(t, ok)
		assert.Equal(t, "$2a$12$hash-for-ops", hash)
	})

	t.Run("lookup is case insensitive", func(t *testing.T) {
		_, ok := cfg.StaffPasswordHash("admin@tillboard.co.ke")
		assert.True(t, ok)
	})

	t.Run("hash keeps embedded colons", func(t *testing.T) {
		hash, _ := cfg.StaffPasswordHash("admin@tillboard.co.ke")
		assert.Equal(t, "$2a$12$hash:with:colons", hash)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, ok := cfg.StaffPasswordHash("stranger@tillboard.co.ke")
		assert.False(t, ok)
	})

	t.Run("malformed entries are skipped", func(t *testing.T) {
		_, ok := cfg.StaffPasswordHash("malformed-entry")
		assert.False(t, ok)
	})
}

func TestCacheCleanupInterval(t *testing.T) {
	t.Run("defaults to thirty seconds", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, getEnvDuration("CACHE_CLEANUP_INTERVAL", 30*time.Second))
	})

	t.Run("overridable from environment", func(t *testing.T) {
		t.Setenv("CACHE_CLEANUP_INTERVAL", "2m")
		assert.Equal(t, 2*time.Minute, getEnvDuration("CACHE_CLEANUP_INTERVAL", 30*time.Second))
	})
}
