package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/metrics"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// statusOverloaded is returned by the API when it is temporarily over capacity
	statusOverloaded = 529

	maxErrorBody = 64 * 1024
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using Anthropic's Messages API. Streamed
// responses are re-framed as OpenAI-compatible events so the shared stream
// decoder can consume them.
type Provider struct {
	config       Config
	client       *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ai.ErrNotConfigured)
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		streamClient: &http.Client{},
		logger:       logger,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "anthropic"
}

// Complete sends a message request
func (p *Provider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.Completion, error) {
	startTime := time.Now()

	httpReq, err := p.buildRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := p.client
	if req.Stream {
		client = p.streamClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		metrics.AIAPICalls.WithLabelValues(p.Name(), "transport_error").Inc()
		return nil, ai.ClassifyTransport(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.AIAPICalls.WithLabelValues(p.Name(), strconv.Itoa(resp.StatusCode)).Inc()
		return nil, p.mapHTTPError(resp.StatusCode, body)
	}
	metrics.AIAPICalls.WithLabelValues(p.Name(), "200").Inc()

	if req.Stream {
		return &ai.Completion{
			Body:  newEventTranslator(resp.Body),
			Usage: ai.UsageInfo{Model: p.config.Model},
		}, nil
	}

	defer resp.Body.Close()
	return p.parseResponse(resp.Body, time.Since(startTime))
}

// buildRequest builds the HTTP request. System messages are lifted into the
// top-level system field as the Messages API requires.
func (p *Provider) buildRequest(ctx context.Context, req ai.CompletionRequest) (*http.Request, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = ai.DefaultMaxTokens
	}

	reqBody := apiRequest{
		Model:       p.config.Model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == ai.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		reqBody.Messages = append(reqBody.Messages, apiMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	reqBody.System = strings.Join(system, "\n\n")

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Set headers
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	return httpReq, nil
}

// parseResponse parses a non-streamed message response
func (p *Provider) parseResponse(body io.Reader, duration time.Duration) (*ai.Completion, error) {
	var apiResp apiResponse
	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, ai.ClassifyTransport(fmt.Errorf("decode response: %w", err))
	}

	// Get the text content
	var text strings.Builder
	for _, content := range apiResp.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}

	usage := ai.UsageInfo{
		Model:        apiResp.Model,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
		Duration:     duration,
	}
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))

	p.logger.Debug("message received",
		"model", usage.Model,
		"stop_reason", apiResp.StopReason,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"duration_ms", duration.Milliseconds(),
	)

	return &ai.Completion{
		Text:         text.String(),
		FinishReason: finishReason(apiResp.StopReason),
		Usage:        usage,
	}, nil
}

// finishReason maps a Messages API stop reason onto the shared finish reasons
func finishReason(stopReason string) string {
	switch stopReason {
	case "refusal":
		return ai.FinishContentFilter
	case "max_tokens":
		return ai.FinishLength
	case "":
		return ""
	default:
		return ai.FinishStop
	}
}

// mapHTTPError maps HTTP status codes to classified errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	// Try to parse error response
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	p.logger.Warn("message request failed",
		"status", statusCode,
		"type", errResp.Error.Type,
		"message", errResp.Error.Message,
	)

	return ai.ClassifyStatus(statusCode, errResp.Error.Type, errResp.Error.Message)
}

// API request/response types

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	Stream      bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []apiContentOutput `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
