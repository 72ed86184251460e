package openai

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
	// DefaultBaseURL is the base URL of the OpenAI API. Any endpoint that
	// speaks the chat completions protocol can be used instead.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the default chat model to use
	DefaultModel = "gpt-4o-mini"

	// maxErrorBody bounds how much of an error response is read
	maxErrorBody = 64 * 1024
)

// Config contains configuration for the OpenAI-compatible provider
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider against an OpenAI-compatible chat
// completions endpoint.
type Provider struct {
	config Config
	// client is used for single-shot calls and carries the request timeout.
	// streamClient has no timeout; streams are bounded by the caller's context.
	client       *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// New creates a new OpenAI-compatible provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ai.ErrNotConfigured)
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
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
	return "openai"
}

// Complete sends a chat completion request
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
			Body:  resp.Body,
			Usage: ai.UsageInfo{Model: p.config.Model},
		}, nil
	}

	defer resp.Body.Close()
	return p.parseResponse(resp.Body, time.Since(startTime))
}

// buildRequest builds the HTTP request for a chat completion
func (p *Provider) buildRequest(ctx context.Context, req ai.CompletionRequest) (*http.Request, error) {
	reqBody := apiRequest{
		Model:       p.config.Model,
		Messages:    make([]apiMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
	for _, m := range req.Messages {
		reqBody.Messages = append(reqBody.Messages, apiMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return httpReq, nil
}

// parseResponse parses a single-shot completion envelope
func (p *Provider) parseResponse(body io.Reader, duration time.Duration) (*ai.Completion, error) {
	var apiResp apiResponse
	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, ai.ClassifyTransport(fmt.Errorf("decode response: %w", err))
	}
	if len(apiResp.Choices) == 0 {
		return nil, ai.TransportError("response contained no choices", nil)
	}

	choice := apiResp.Choices[0]
	usage := ai.UsageInfo{
		Model:        apiResp.Model,
		InputTokens:  apiResp.Usage.PromptTokens,
		OutputTokens: apiResp.Usage.CompletionTokens,
		Duration:     duration,
	}
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))

	p.logger.Debug("completion received",
		"model", usage.Model,
		"finish_reason", choice.FinishReason,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"duration_ms", duration.Milliseconds(),
	)

	return &ai.Completion{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        usage,
	}, nil
}

// mapHTTPError maps an error response to a classified error
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	// Try to parse error response
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	code := errResp.Error.Code
	if code == "" {
		code = errResp.Error.Type
	}

	p.logger.Warn("completion request failed",
		"status", statusCode,
		"code", code,
		"message", errResp.Error.Message,
	)

	return ai.ClassifyStatus(statusCode, code, errResp.Error.Message)
}

// API request/response types

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Index        int        `json:"index"`
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
