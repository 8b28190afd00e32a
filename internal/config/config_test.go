package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
	assert.Equal(t, DefaultTZ, cfg.DefaultTimezone)
	assert.Equal(t, 5*time.Minute, cfg.BillingTolerance)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_RPM", "300")
	t.Setenv("BILLING_TOLERANCE", "90s")
	t.Setenv("DEFAULT_TIMEZONE", "America/New_York")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 300, cfg.RateLimitRPM)
	assert.Equal(t, 90*time.Second, cfg.BillingTolerance)
	assert.Equal(t, "America/New_York", cfg.DefaultTimezone)
}

func TestValidate_ProductionRequiresSecrets(t *testing.T) {
	cfg := &Config{Env: "production", DefaultTimezone: "UTC"}
	assert.Error(t, cfg.Validate())

	cfg.AdminSecret = "secret"
	assert.Error(t, cfg.Validate())

	cfg.StripeWebhookSecret = "whsec_test"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadTimezone(t *testing.T) {
	cfg := &Config{Env: "development", DefaultTimezone: "Not/AZone"}
	assert.Error(t, cfg.Validate())
}

func TestLoad_BadOverridesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPM", "not-a-number")
	t.Setenv("BILLING_TOLERANCE", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
	assert.Equal(t, 5*time.Minute, cfg.BillingTolerance)
}
