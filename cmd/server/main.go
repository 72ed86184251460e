package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/aula/internal"
	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/ai/anthropic"
	"github.com/DukeRupert/aula/internal/ai/mock"
	"github.com/DukeRupert/aula/internal/ai/openai"
	"github.com/DukeRupert/aula/internal/auth"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/export"
	"github.com/DukeRupert/aula/internal/generation"
	"github.com/DukeRupert/aula/internal/handler"
	"github.com/DukeRupert/aula/internal/middleware"
	"github.com/DukeRupert/aula/internal/repository"
	"github.com/DukeRupert/aula/internal/service"
	"github.com/DukeRupert/aula/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	tiers, err := cfg.TierLimits()
	if err != nil {
		return fmt.Errorf("tier limits: %w", err)
	}

	checks := map[string]handler.HealthCheck{}

	// ==========================================================================
	// Usage storage
	// ==========================================================================

	var store repository.Store
	if cfg.DatabaseURL != "" {
		db, err := repository.Open(ctx, cfg.DatabaseURL, repository.DefaultOpenConfig(), logger)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		// Run migrations
		if err := internal.RunMigrations(ctx, db, logger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")

		store = repository.NewPostgresStore(db)
		checks["database"] = db.PingContext
	} else {
		logger.Warn("DATABASE_URL not set, usage is kept in memory and lost on restart")
		store = repository.NewMemoryStore()
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	ledger := service.NewUsageLedger(store, store, service.LedgerConfig{Limits: tiers}, logger)
	gate := service.NewQuotaGate(ledger, service.GateConfig{FailClosed: cfg.QuotaFailClosed}, logger)

	var orchestrator *generation.Orchestrator
	provider, err := newProvider(cfg, logger)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn("LLM provider not configured, generation requests will be refused", "provider", cfg.LLMProvider)
	case err != nil:
		return fmt.Errorf("llm provider initialization failed: %w", err)
	default:
		orchestrator = generation.NewOrchestrator(provider, cfg.RetryConfig(), logger)
		logger.Info("LLM provider ready", "provider", provider.Name())
	}

	generations := generation.NewService(orchestrator, gate, generation.ServiceConfig{
		MeterRefinement: cfg.MeterRefinement,
	}, logger)

	objects, files, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	uploads := service.NewUploadService(gate, objects, service.NewImagingProcessor(), service.UploadConfig{Limits: tiers}, logger)

	renderers := export.DefaultRegistry(logger)
	logger.Info("Export formats ready", "formats", renderers.Formats())
	exports := service.NewExportService(ledger, renderers, service.ExportConfig{FailClosed: cfg.QuotaFailClosed}, logger)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := !cfg.IsDevelopment()
	tokens := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	authMw := middleware.NewAuthMiddleware(tokens, logger)

	var rateLimit handler.Middleware
	if cfg.RateLimitPerMinute > 0 {
		var limiter middleware.Limiter
		if cfg.RedisURL != "" {
			client, err := middleware.ConnectRedis(ctx, cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("redis connection failed: %w", err)
			}
			defer client.Close()

			limiter = middleware.NewRedisRateLimiter(client, "aula:ratelimit", cfg.RateLimitPerMinute, time.Minute)
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		} else {
			memory := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
			defer memory.Close()
			limiter = memory
		}
		rateLimit = middleware.NewRateLimitMiddleware(limiter, "api", logger).Limit
	}

	metricsAuth := middleware.NewBasicAuthMiddleware("metrics", cfg.MetricsUsername, cfg.MetricsPassword)
	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME/METRICS_PASSWORD not set, /metrics is unprotected")
	}

	// ==========================================================================
	// Create router
	// ==========================================================================

	router := handler.NewRouter(handler.RouterConfig{
		Generation: handler.NewGenerationHandler(generations, logger),
		Usage:      handler.NewUsageHandler(ledger, logger),
		Uploads:    handler.NewUploadHandler(uploads, maxUploadBody(tiers), logger),
		Exports:    handler.NewExportHandler(exports, logger),
		Health:     handler.NewHealthHandler(checks, logger),
		Metrics:    promhttp.Handler(),
		Files:      files,

		CORSOrigins: cfg.CORSAllowedOrigins,

		Logging:      middleware.NewRequestLoggingMiddleware(logger).Handler,
		Security:     middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
		Authenticate: middleware.Stack(authMw.WithUser, authMw.RequireUser),
		RateLimit:    rateLimit,
		MetricsAuth:  metricsAuth.Handler,
	})

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newProvider builds the configured LLM provider. Errors wrapping
// ai.ErrNotConfigured mean the API key is missing.
func newProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	providerCfg := ai.ProviderConfig{RequestTimeout: cfg.LLMRequestTimeout}

	switch cfg.LLMProvider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:         cfg.LLMAPIKey,
			BaseURL:        cfg.LLMBaseURL,
			Model:          cfg.LLMModel,
			ProviderConfig: providerCfg,
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:         cfg.LLMAPIKey,
			BaseURL:        cfg.LLMBaseURL,
			Model:          cfg.LLMModel,
			ProviderConfig: providerCfg,
		}, logger)
	default:
		return mock.New(logger), nil
	}
}

// newStorage builds the upload store. Local storage is also served under
// handler.FilesPrefix.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, http.Handler, error) {
	if cfg.StorageProvider == storage.ProviderR2 {
		r2, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
			Region:          cfg.R2Region,
		}, logger)
		return r2, nil, err
	}

	local, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: cfg.LocalStoragePath,
		BaseURL:  cfg.LocalStorageURL,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return local, handler.NewFileServer(handler.FilesPrefix, cfg.LocalStoragePath), nil
}

// maxUploadBody caps multipart request bodies at the largest per-tier file
// size plus room for the multipart framing.
func maxUploadBody(tiers domain.TierLimitsTable) int64 {
	var largest int64
	for _, limits := range tiers {
		largest = max(largest, limits.MaxUploadBytes)
	}
	return largest + 1<<20
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
