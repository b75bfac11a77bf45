package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/billbook")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "")
	t.Setenv("REPORT_CACHE_TTL", "")
	t.Setenv("RATE_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, 5*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, "invoices", cfg.PDFBucket)
	assert.Equal(t, "en-IN", cfg.NumberLocale)
	assert.Equal(t, "300-M", cfg.RateLimit)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/billbook")
	t.Setenv("JWKS_URL", "https://auth.example.com/.well-known/jwks.json")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", ":9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MINIO_USE_SSL", "yes")
	t.Setenv("OVERDUE_CHECK_INTERVAL", "not-a-duration")
	t.Setenv("APP_ENV", "Production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, time.Hour, cfg.OverdueCheckInterval)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_RequiresDatabaseAndAuth(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "x")
	_, err := Load()
	assert.EqualError(t, err, "DATABASE_URL is required")

	t.Setenv("DATABASE_URL", "postgres://localhost/billbook")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWKS_URL", "")
	_, err = Load()
	assert.EqualError(t, err, "JWT_SECRET or JWKS_URL is required")
}

func TestParseBusinessProfile(t *testing.T) {
	profile, err := ParseBusinessProfile(`
[business]
name = "Acme Traders"
state = " Maharashtra "
gstin = "27abcde1234f1z5"

[invoice]
payment_term_days = 15
`)
	require.NoError(t, err)
	assert.Equal(t, "Acme Traders", profile.Business.Name)
	assert.Equal(t, "Maharashtra", profile.Business.State)
	assert.Equal(t, "27ABCDE1234F1Z5", profile.Business.GSTIN)
	assert.Equal(t, 15, profile.Invoice.PaymentTermDays)
	assert.Equal(t, "INR", profile.Invoice.Currency)
}

func TestLoadBusinessProfile_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "business.toml")
	require.NoError(t, os.WriteFile(path, []byte("[business]\nstate = \"Karnataka\"\n"), 0o600))

	cfg := &Config{BusinessProfileFile: path}
	profile, err := cfg.Profile()
	require.NoError(t, err)
	assert.Equal(t, "Karnataka", profile.Business.State)
	assert.Equal(t, 30, profile.Invoice.PaymentTermDays)

	_, err = LoadBusinessProfile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestProfile_FromEnvironment(t *testing.T) {
	cfg := &Config{BusinessState: "Goa", BusinessCurrency: "USD", NumberLocale: "en-US"}
	profile, err := cfg.Profile()
	require.NoError(t, err)
	assert.Equal(t, "Goa", profile.Business.State)
	assert.Equal(t, "USD", profile.Invoice.Currency)
	assert.Equal(t, "en-US", profile.Invoice.NumberLocale)
}

func TestParseBusinessProfile_Invalid(t *testing.T) {
	_, err := ParseBusinessProfile("[business\nname=")
	assert.Error(t, err)
}
