package internal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// developmentJWTSecret is used only when ENV=development and JWT_SECRET is unset.
const developmentJWTSecret = "aula-development-secret-do-not-use-in-production"

type Config struct {
	Env         string `env:"ENV" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"debug"`
	DatabaseURL string `env:"DATABASE_URL"` // Optional; usage is kept in memory without it

	// LLM provider
	LLMProvider       string        `env:"LLM_PROVIDER" envDefault:"mock"` // "openai", "anthropic" or "mock"
	LLMAPIKey         string        `env:"LLM_API_KEY"`
	LLMBaseURL        string        `env:"LLM_BASE_URL"`
	LLMModel          string        `env:"LLM_MODEL"`
	LLMRequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"60s"`
	LLMMaxAttempts    int           `env:"LLM_MAX_ATTEMPTS" envDefault:"3"`
	LLMRetryBaseDelay time.Duration `env:"LLM_RETRY_BASE_DELAY" envDefault:"1s"`
	LLMRetryMaxDelay  time.Duration `env:"LLM_RETRY_MAX_DELAY" envDefault:"10s"`

	// Quota policies
	TierLimitsFile  string `env:"TIER_LIMITS_FILE"`
	QuotaFailClosed bool   `env:"QUOTA_FAIL_CLOSED" envDefault:"false"`
	MeterRefinement bool   `env:"METER_REFINEMENT" envDefault:"false"`

	// Authentication
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"aula"`

	// Rate limiting; 0 disables it. Limits are shared through Redis when
	// REDIS_URL is set.
	RedisURL           string `env:"REDIS_URL"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Storage Configuration
	StorageProvider  string `env:"STORAGE_PROVIDER" envDefault:"local"` // "local" or "r2"
	LocalStoragePath string `env:"LOCAL_STORAGE_PATH" envDefault:"./storage"`
	LocalStorageURL  string `env:"LOCAL_STORAGE_URL" envDefault:"http://localhost:8080/files"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicURL       string `env:"R2_PUBLIC_URL"` // Optional custom domain URL
	R2Region          string `env:"R2_REGION" envDefault:"auto"`

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string `env:"METRICS_USERNAME"`
	MetricsPassword string `env:"METRICS_PASSWORD"`
}

// NewConfig loads .env (if present) and the process environment.
func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()
	return LoadConfig(nil)
}

// LoadConfig parses and validates configuration from environ, or from the
// process environment when environ is nil.
func LoadConfig(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("LLM_PROVIDER must be 'openai', 'anthropic' or 'mock', got: %s", c.LLMProvider)
	}
	// A missing LLM_API_KEY is not an error: generation answers 503 until
	// one is configured.

	if c.LLMMaxAttempts < 1 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1, got: %d", c.LLMMaxAttempts)
	}
	if c.LLMRetryBaseDelay < 0 || c.LLMRetryMaxDelay < 0 {
		return errors.New("LLM retry delays must not be negative")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got: %d", c.RateLimitPerMinute)
	}

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.JWTSecret = developmentJWTSecret
	} else if len(c.JWTSecret) < 32 && !c.IsDevelopment() {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}

	// Validate storage configuration
	switch c.StorageProvider {
	case "local":
	case "r2":
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	return nil
}

// IsDevelopment reports whether ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// RetryConfig returns the retry envelope for provider calls.
func (c *Config) RetryConfig() ai.RetryConfig {
	return ai.RetryConfig{
		MaxAttempts: c.LLMMaxAttempts,
		BaseDelay:   c.LLMRetryBaseDelay,
		MaxDelay:    c.LLMRetryMaxDelay,
	}
}

// TierLimits returns the built-in tier table, with any tiers defined in
// TIER_LIMITS_FILE replacing the built-in entry for that tier.
func (c *Config) TierLimits() (domain.TierLimitsTable, error) {
	table := domain.DefaultTierLimits()
	if c.TierLimitsFile == "" {
		return table, nil
	}

	data, err := os.ReadFile(c.TierLimitsFile)
	if err != nil {
		return nil, fmt.Errorf("read tier limits: %w", err)
	}
	overrides, err := ParseTierLimits(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.TierLimitsFile, err)
	}
	for tier, limits := range overrides {
		table[tier] = limits
	}
	return table, nil
}

// ParseTierLimits decodes a YAML tier table:
//
//	free:
//	  limits:
//	    lessonPlans: 5
//	    activities: 10
//	    assessments: 5
//	    fileUploads: 3
//	  max_upload_bytes: 5242880
//	  export_formats: [pdf]
//
// A category that is missing or null is unlimited.
func ParseTierLimits(data []byte) (domain.TierLimitsTable, error) {
	var table domain.TierLimitsTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse tier limits: %w", err)
	}

	for tier, limits := range table {
		if !tier.Valid() {
			return nil, fmt.Errorf("unknown tier %q", tier)
		}
		for category, limit := range limits.Limits {
			if !category.Valid() {
				return nil, fmt.Errorf("tier %s: unknown category %q", tier, category)
			}
			if limit != nil && *limit < 0 {
				return nil, fmt.Errorf("tier %s: limit for %s must not be negative", tier, category)
			}
		}
		if limits.MaxUploadBytes <= 0 {
			return nil, fmt.Errorf("tier %s: max_upload_bytes must be positive", tier)
		}
	}
	return table, nil
}
