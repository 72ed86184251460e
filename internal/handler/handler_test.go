package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/ai/mock"
	"github.com/DukeRupert/aula/internal/auth"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/export"
	"github.com/DukeRupert/aula/internal/generation"
	"github.com/DukeRupert/aula/internal/repository"
	"github.com/DukeRupert/aula/internal/service"
	"github.com/DukeRupert/aula/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// apiFixture wires the real services over an in-memory store, the mock
// provider and local storage in a temp dir.
type apiFixture struct {
	store    *repository.MemoryStore
	provider *mock.Provider
	files    *storage.LocalStorage

	generations *GenerationHandler
	usage       *UsageHandler
	uploads     *UploadHandler
	exports     *ExportHandler

	user uuid.UUID
}

type fixtureOptions struct {
	svc           generation.ServiceConfig
	maxUploadBody int64
	noProvider    bool
}

func newAPIFixture(t *testing.T, opts fixtureOptions) *apiFixture {
	t.Helper()

	f := &apiFixture{
		store:    repository.NewMemoryStore(),
		provider: mock.New(discardLogger()),
		user:     uuid.New(),
	}

	files, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, discardLogger())
	require.NoError(t, err)
	f.files = files

	limits := domain.DefaultTierLimits()
	ledger := service.NewUsageLedger(f.store, f.store, service.LedgerConfig{Limits: limits}, discardLogger())
	gate := service.NewQuotaGate(ledger, service.GateConfig{}, discardLogger())

	var orchestrator *generation.Orchestrator
	if !opts.noProvider {
		orchestrator = generation.NewOrchestrator(f.provider, ai.DefaultRetryConfig(), discardLogger()).WithSleeper(noSleep)
	}
	svc := generation.NewService(orchestrator, gate, opts.svc, discardLogger())
	uploads := service.NewUploadService(gate, files, service.NewImagingProcessor(), service.UploadConfig{Limits: limits}, discardLogger())

	f.generations = NewGenerationHandler(svc, discardLogger())
	f.usage = NewUsageHandler(ledger, discardLogger())
	f.uploads = NewUploadHandler(uploads, opts.maxUploadBody, discardLogger())

	renderers := export.NewRegistry(export.NewPDFRenderer(), export.NewHTMLRenderer())
	exports := service.NewExportService(ledger, renderers, service.ExportConfig{}, discardLogger())
	f.exports = NewExportHandler(exports, discardLogger())
	return f
}

// seed appends n records of genType dated now.
func (f *apiFixture) seed(t *testing.T, genType domain.GenerationType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := domain.NewUsageRecord(f.user, genType, domain.TierFree, time.Now(), nil)
		require.NoError(t, f.store.AppendUsage(context.Background(), rec))
	}
}

// request builds a request authenticated as the fixture user.
func (f *apiFixture) request(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(auth.SetUserID(req.Context(), f.user))
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func lessonBody() map[string]any {
	return map[string]any{
		"type":        "lesson-plan",
		"topic":       "Photosynthesis",
		"grade_level": "5",
		"subject":     "science",
	}
}
