package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	PDFBucket      string
	ReceiptBucket  string
	PresignTTL     time.Duration

	JWTSecret string
	JWKSURL   string
	RateLimit string

	LogLevel  string
	LogFormat string

	ReportCacheTTL       time.Duration
	OverdueCheckInterval time.Duration

	BusinessCurrency    string
	NumberLocale        string
	BusinessState       string
	BusinessProfileFile string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),

		RedisAddr:     valueOrDefault(k.String("REDIS_ADDR"), "localhost:6379"),
		RedisPassword: k.String("REDIS_PASSWORD"),
		RedisDB:       parseInt(k.String("REDIS_DB"), 0),

		MinioEndpoint:  valueOrDefault(k.String("MINIO_ENDPOINT"), "localhost:9000"),
		MinioAccessKey: k.String("MINIO_ACCESS_KEY"),
		MinioSecretKey: k.String("MINIO_SECRET_KEY"),
		MinioUseSSL:    parseBool(k.String("MINIO_USE_SSL")),
		PDFBucket:      valueOrDefault(k.String("PDF_BUCKET"), "invoices"),
		ReceiptBucket:  valueOrDefault(k.String("RECEIPT_BUCKET"), "receipts"),
		PresignTTL:     parseDuration(k.String("PRESIGN_TTL"), "1h"),

		JWTSecret: k.String("JWT_SECRET"),
		JWKSURL:   strings.TrimSpace(k.String("JWKS_URL")),
		RateLimit: valueOrDefault(k.String("RATE_LIMIT"), "300-M"),

		LogLevel:  valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat: valueOrDefault(k.String("LOG_FORMAT"), "json"),

		ReportCacheTTL:       parseDuration(k.String("REPORT_CACHE_TTL"), "5m"),
		OverdueCheckInterval: parseDuration(k.String("OVERDUE_CHECK_INTERVAL"), "1h"),

		BusinessCurrency:    valueOrDefault(k.String("BUSINESS_CURRENCY"), "INR"),
		NumberLocale:        valueOrDefault(k.String("NUMBER_LOCALE"), "en-IN"),
		BusinessState:       strings.TrimSpace(k.String("BUSINESS_STATE")),
		BusinessProfileFile: strings.TrimSpace(k.String("BUSINESS_PROFILE_FILE")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return nil, errors.New("JWT_SECRET or JWKS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Profile loads the business profile file, or builds a minimal one from the environment.
func (c *Config) Profile() (*BusinessProfile, error) {
	if c.BusinessProfileFile != "" {
		return LoadBusinessProfile(c.BusinessProfileFile)
	}
	p := &BusinessProfile{}
	p.Business.State = c.BusinessState
	p.Invoice.Currency = c.BusinessCurrency
	p.Invoice.NumberLocale = c.NumberLocale
	p.applyDefaults()
	return p, nil
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
