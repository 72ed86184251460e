package handler

import (
	"net/http"

	"github.com/DukeRupert/aula/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// RouterConfig collects the handlers and middleware served by NewRouter.
// Nil middleware is skipped; a nil Files handler leaves /files unmounted.
type RouterConfig struct {
	Generation *GenerationHandler
	Usage      *UsageHandler
	Uploads    *UploadHandler
	Exports    *ExportHandler
	Health     http.Handler
	Metrics    http.Handler
	Files      http.Handler

	CORSOrigins []string

	Logging      Middleware
	Security     Middleware
	Authenticate Middleware // must reject anonymous requests
	RateLimit    Middleware
	MetricsAuth  Middleware
}

// FilesPrefix is where local storage objects are served.
const FilesPrefix = "/files/"

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, metrics.Middleware)
	r.Use(orPass(cfg.Logging), orPass(cfg.Security))

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.Metrics != nil {
		r.With(orPass(cfg.MetricsAuth)).Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.Files != nil {
		r.Handle(FilesPrefix+"*", cfg.Files)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(newCORS(cfg.CORSOrigins).Handler)
		api.Use(orPass(cfg.Authenticate))

		limited := api.With(orPass(cfg.RateLimit))
		if cfg.Generation != nil {
			limited.Post("/generate", cfg.Generation.Generate)
			limited.Post("/refine", cfg.Generation.Refine)
		}
		if cfg.Uploads != nil {
			limited.Post("/uploads", cfg.Uploads.Create)
		}
		if cfg.Exports != nil {
			limited.Post("/export", cfg.Exports.Create)
		}
		if cfg.Usage != nil {
			api.Get("/usage", cfg.Usage.Show)
		}
	})

	return r
}

func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           600,
	})
}

func orPass(m Middleware) Middleware {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return m
}
