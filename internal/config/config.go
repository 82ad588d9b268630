// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port    int    `koanf:"port"`
	Env     string `koanf:"env"`
	BaseURL string `koanf:"base_url"` // Public URL for payment return/callback links

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (cart storage, rate limiting)
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// CORS allowed origins, comma separated. Empty disables CORS.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// Stripe
	StripeAPIKey        string `koanf:"stripe_api_key"`
	StripeWebhookSecret string `koanf:"stripe_webhook_secret"`

	// PayThor
	PayThorBaseURL       string `koanf:"paythor_base_url"`
	PayThorAPIKey        string `koanf:"paythor_api_key"`
	PayThorWebhookSecret string `koanf:"paythor_webhook_secret"`

	// PayTR
	PayTRBaseURL      string `koanf:"paytr_base_url"`
	PayTRMerchantID   string `koanf:"paytr_merchant_id"`
	PayTRMerchantKey  string `koanf:"paytr_merchant_key"`
	PayTRMerchantSalt string `koanf:"paytr_merchant_salt"`
	PayTRTestMode     bool   `koanf:"paytr_test_mode"`

	// SMTP notifications
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port"`
	SMTPUser string `koanf:"smtp_user"`
	SMTPPass string `koanf:"smtp_pass"`
	SMTPFrom string `koanf:"smtp_from"`

	// Payment sweep tuning
	SweepIntervalMinutes   int `koanf:"sweep_interval_minutes"`    // Default: 5
	SweepStaleAfterMinutes int `koanf:"sweep_stale_after_minutes"` // Default: 30
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL         = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret           = errors.New("JWT_SECRET is required")
	ErrMissingBaseURL             = errors.New("BASE_URL is required")
	ErrMissingStripeAPIKey        = errors.New("STRIPE_API_KEY is required")
	ErrMissingStripeWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required")
	ErrMissingPayThorAPIKey       = errors.New("PAYTHOR_API_KEY is required")
	ErrMissingPayThorSecret       = errors.New("PAYTHOR_WEBHOOK_SECRET is required")
	ErrMissingPayTRMerchantID     = errors.New("PAYTR_MERCHANT_ID is required")
	ErrMissingPayTRMerchantKey    = errors.New("PAYTR_MERCHANT_KEY is required")
	ErrMissingPayTRMerchantSalt   = errors.New("PAYTR_MERCHANT_SALT is required")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                   = 8080
	DefaultEnv                    = "development"
	DefaultRedisAddr              = "localhost:6379"
	DefaultSMTPPort               = 587
	DefaultPayThorBaseURL         = "https://api.paythor.com"
	DefaultPayTRBaseURL           = "https://www.paytr.com"
	DefaultSweepIntervalMinutes   = 5
	DefaultSweepStaleAfterMinutes = 30
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	smtpPort, smtpPortErr := getEnvIntOrDefault("SMTP_PORT", k.Int("smtp_port"), DefaultSMTPPort)
	if smtpPortErr != nil {
		loadErrs = append(loadErrs, smtpPortErr)
	}

	sweepInterval, sweepIntervalErr := getEnvIntOrDefault("SWEEP_INTERVAL_MINUTES", k.Int("sweep_interval_minutes"), DefaultSweepIntervalMinutes)
	if sweepIntervalErr != nil {
		loadErrs = append(loadErrs, sweepIntervalErr)
	}
	sweepStaleAfter, sweepStaleAfterErr := getEnvIntOrDefault("SWEEP_STALE_AFTER_MINUTES", k.Int("sweep_stale_after_minutes"), DefaultSweepStaleAfterMinutes)
	if sweepStaleAfterErr != nil {
		loadErrs = append(loadErrs, sweepStaleAfterErr)
	}

	// Parse PayTR test mode flag, env var taking precedence over file config
	payTRTestMode := k.Bool("paytr_test_mode")
	if val := os.Getenv("PAYTR_TEST_MODE"); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			payTRTestMode = true
		case "false", "0", "no", "off":
			payTRTestMode = false
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:    port,
		Env:     getEnvOrDefaultMulti([]string{"ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		BaseURL: getEnvOrKoanf("BASE_URL", k, "base_url"),

		DatabaseURL:   getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", k.String("redis_addr"), DefaultRedisAddr),
		RedisPassword: getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		JWTSecret:     getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),

		CORSAllowedOrigins: getEnvOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),

		StripeAPIKey:        getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret: getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),

		PayThorBaseURL:       getEnvOrDefault("PAYTHOR_BASE_URL", k.String("paythor_base_url"), DefaultPayThorBaseURL),
		PayThorAPIKey:        getEnvOrKoanf("PAYTHOR_API_KEY", k, "paythor_api_key"),
		PayThorWebhookSecret: getEnvOrKoanf("PAYTHOR_WEBHOOK_SECRET", k, "paythor_webhook_secret"),

		PayTRBaseURL:      getEnvOrDefault("PAYTR_BASE_URL", k.String("paytr_base_url"), DefaultPayTRBaseURL),
		PayTRMerchantID:   getEnvOrKoanf("PAYTR_MERCHANT_ID", k, "paytr_merchant_id"),
		PayTRMerchantKey:  getEnvOrKoanf("PAYTR_MERCHANT_KEY", k, "paytr_merchant_key"),
		PayTRMerchantSalt: getEnvOrKoanf("PAYTR_MERCHANT_SALT", k, "paytr_merchant_salt"),
		PayTRTestMode:     payTRTestMode,

		SMTPHost: getEnvOrKoanf("SMTP_HOST", k, "smtp_host"),
		SMTPPort: smtpPort,
		SMTPUser: getEnvOrKoanf("SMTP_USER", k, "smtp_user"),
		SMTPPass: getEnvOrKoanf("SMTP_PASS", k, "smtp_pass"),
		SMTPFrom: getEnvOrKoanf("SMTP_FROM", k, "smtp_from"),

		SweepIntervalMinutes:   sweepInterval,
		SweepStaleAfterMinutes: sweepStaleAfter,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.BaseURL == "" {
		errs = append(errs, ErrMissingBaseURL)
	}
	if c.StripeAPIKey == "" {
		errs = append(errs, ErrMissingStripeAPIKey)
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, ErrMissingStripeWebhookSecret)
	}

	// PayThor configuration is optional. Only validate fields if any value is set.
	if c.PayThorAPIKey != "" || c.PayThorWebhookSecret != "" {
		if c.PayThorAPIKey == "" {
			errs = append(errs, ErrMissingPayThorAPIKey)
		}
		if c.PayThorWebhookSecret == "" {
			errs = append(errs, ErrMissingPayThorSecret)
		}
	}

	// Same for PayTR: either fully configured or absent.
	if c.PayTRMerchantID != "" || c.PayTRMerchantKey != "" || c.PayTRMerchantSalt != "" {
		if c.PayTRMerchantID == "" {
			errs = append(errs, ErrMissingPayTRMerchantID)
		}
		if c.PayTRMerchantKey == "" {
			errs = append(errs, ErrMissingPayTRMerchantKey)
		}
		if c.PayTRMerchantSalt == "" {
			errs = append(errs, ErrMissingPayTRMerchantSalt)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                      fmt.Sprintf("%d", c.Port),
		"env":                       c.Env,
		"base_url":                  c.BaseURL,
		"database_url":              maskDatabaseURL(c.DatabaseURL),
		"redis_addr":                c.RedisAddr,
		"redis_password":            maskSecret(c.RedisPassword),
		"jwt_secret":                maskSecret(c.JWTSecret),
		"cors_allowed_origins":      c.CORSAllowedOrigins,
		"stripe_api_key":            maskStripeKey(c.StripeAPIKey),
		"stripe_webhook_secret":     maskSecret(c.StripeWebhookSecret),
		"paythor_base_url":          c.PayThorBaseURL,
		"paythor_api_key":           maskSecret(c.PayThorAPIKey),
		"paythor_webhook_secret":    maskSecret(c.PayThorWebhookSecret),
		"paytr_base_url":            c.PayTRBaseURL,
		"paytr_merchant_id":         c.PayTRMerchantID,
		"paytr_merchant_key":        maskSecret(c.PayTRMerchantKey),
		"paytr_merchant_salt":       maskSecret(c.PayTRMerchantSalt),
		"paytr_test_mode":           fmt.Sprintf("%t", c.PayTRTestMode),
		"smtp_host":                 c.SMTPHost,
		"smtp_port":                 fmt.Sprintf("%d", c.SMTPPort),
		"smtp_user":                 c.SMTPUser,
		"smtp_pass":                 maskSecret(c.SMTPPass),
		"smtp_from":                 c.SMTPFrom,
		"sweep_interval_minutes":    fmt.Sprintf("%d", c.SweepIntervalMinutes),
		"sweep_stale_after_minutes": fmt.Sprintf("%d", c.SweepStaleAfterMinutes),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskStripeKey masks a Stripe API key, preserving the prefix (sk_live_, sk_test_, etc.)
func maskStripeKey(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Stripe keys have format like sk_live_..., sk_test_..., pk_live_..., etc.
	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}

	// Fallback to generic masking
	return maskSecret(s)
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
