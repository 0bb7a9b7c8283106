package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.True(t, cfg.AllowNegativeStock)
	require.True(t, cfg.TaxRate().IsZero())
	require.Equal(t, 24*time.Hour, cfg.IntakeDraftTTL)
	require.False(t, cfg.BlobConfigured())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("INVOICE_TAX_RATE", "0.18")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "false")
	t.Setenv("S3_BUCKET", "garage")
	t.Setenv("S3_PUBLIC_URL", "https://img.example.com")
	t.Setenv("LOCK_WAIT", "2s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "0.18", cfg.TaxRate().String())
	require.False(t, cfg.AllowNegativeStock)
	require.True(t, cfg.BlobConfigured())
	require.Equal(t, 2*time.Second, cfg.LockWait)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("INVOICE_TAX_RATE", "18")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "INVOICE_TAX_RATE")

	t.Setenv("INVOICE_TAX_RATE", "abc")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("INVOICE_TAX_RATE", "0")
	t.Setenv("RATE_LIMIT_PER_MIN", "0")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "RATE_LIMIT_PER_MIN")
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
