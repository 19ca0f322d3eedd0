package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STAYBOOK_SESSION_SECRET", "s3cret")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "15.00", cfg.Commission.DefaultRate)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, 30*24*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.DB.AutoMigrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STAYBOOK_SESSION_SECRET", "s3cret")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	t.Setenv("STAYBOOK_HTTP_ADDR", ":9090")
	t.Setenv("STAYBOOK_COMMISSION_DEFAULT", "12.50")
	t.Setenv("STAYBOOK_SESSION_TTL_HOURS", "2")
	t.Setenv("STAYBOOK_LOGIN_RPS", "0.5")
	t.Setenv("STAYBOOK_AUTO_MIGRATE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "12.50", cfg.Commission.DefaultRate)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 0.5, cfg.Login.RPS)
	assert.False(t, cfg.DB.AutoMigrate)
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("STAYBOOK_SESSION_SECRET", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STAYBOOK_SESSION_SECRET")
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
}

func TestLoadBench(t *testing.T) {
	t.Setenv("STAYBOOK_SESSION_SECRET", "")
	t.Setenv("STAYBOOK_DB_DSN", "postgres://bench@db/staybook")
	t.Setenv("STAYBOOK_BENCH_TIMEOUT", "90s")
	t.Setenv("STAYBOOK_BENCH_CONCURRENCY", "0")
	t.Setenv("STAYBOOK_BENCH_STRICT", "true")

	cfg := LoadBench()
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "postgres://bench@db/staybook", cfg.DSN)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Duration)
	assert.True(t, cfg.Strict)
}
