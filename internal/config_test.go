package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "mock", cfg.LLMProvider)
	assert.Equal(t, 3, cfg.LLMMaxAttempts)
	assert.Equal(t, time.Second, cfg.LLMRetryBaseDelay)
	assert.Equal(t, 10*time.Second, cfg.LLMRetryMaxDelay)
	assert.Equal(t, "local", cfg.StorageProvider)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.QuotaFailClosed)
	assert.False(t, cfg.MeterRefinement)
	assert.Equal(t, developmentJWTSecret, cfg.JWTSecret)

	retry := cfg.RetryConfig()
	assert.Equal(t, 3, retry.MaxAttempts)
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfig(map[string]string{
		"ENV":                   "production",
		"PORT":                  "9000",
		"LLM_PROVIDER":          "anthropic",
		"LLM_MAX_ATTEMPTS":      "5",
		"LLM_RETRY_BASE_DELAY":  "250ms",
		"QUOTA_FAIL_CLOSED":     "true",
		"METER_REFINEMENT":      "true",
		"JWT_SECRET":            "0123456789abcdef0123456789abcdef",
		"CORS_ALLOWED_ORIGINS":  "https://a.example.com,https://b.example.com",
		"RATE_LIMIT_PER_MINUTE": "0",
	})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 5, cfg.LLMMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.LLMRetryBaseDelay)
	assert.True(t, cfg.QuotaFailClosed)
	assert.True(t, cfg.MeterRefinement)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.Zero(t, cfg.RateLimitPerMinute)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"unknown provider", map[string]string{"LLM_PROVIDER": "gemini"}},
		{"zero attempts", map[string]string{"LLM_MAX_ATTEMPTS": "0"}},
		{"negative rate limit", map[string]string{"RATE_LIMIT_PER_MINUTE": "-1"}},
		{"bad duration", map[string]string{"LLM_REQUEST_TIMEOUT": "soon"}},
		{"missing jwt secret in production", map[string]string{"ENV": "production"}},
		{"short jwt secret in production", map[string]string{"ENV": "production", "JWT_SECRET": "short"}},
		{"unknown storage", map[string]string{"STORAGE_PROVIDER": "s3"}},
		{"r2 without credentials", map[string]string{"STORAGE_PROVIDER": "r2", "R2_ACCOUNT_ID": "acct"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.environ)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingAPIKeyIsAllowed(t *testing.T) {
	cfg, err := LoadConfig(map[string]string{"LLM_PROVIDER": "openai"})
	require.NoError(t, err)
	assert.Empty(t, cfg.LLMAPIKey)
}

func TestTierLimits_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
free:
  limits:
    lessonPlans: 2
    activities: 4
    assessments: 1
    fileUploads: null
  max_upload_bytes: 1048576
  export_formats: [pdf]
`), 0o644))

	cfg := &Config{TierLimitsFile: path}
	table, err := cfg.TierLimits()
	require.NoError(t, err)

	free := table.For(domain.TierFree)
	require.NotNil(t, free.Limit(domain.CategoryLessonPlans))
	assert.Equal(t, 2, *free.Limit(domain.CategoryLessonPlans))
	assert.Nil(t, free.Limit(domain.CategoryFileUploads))
	assert.Equal(t, int64(1048576), free.MaxUploadBytes)

	// Tiers absent from the file keep their built-in limits.
	assert.Equal(t, domain.DefaultTierLimits()[domain.TierPremium], table[domain.TierPremium])
}

func TestParseTierLimits_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown tier":     "gold:\n  max_upload_bytes: 10\n",
		"unknown category": "free:\n  limits:\n    poems: 3\n  max_upload_bytes: 10\n",
		"negative limit":   "free:\n  limits:\n    activities: -1\n  max_upload_bytes: 10\n",
		"no upload size":   "free:\n  limits:\n    activities: 1\n",
		"not yaml":         "free: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTierLimits([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestTierLimits_NoFile(t *testing.T) {
	table, err := (&Config{}).TierLimits()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTierLimits(), table)
}
