package ai

import (
	"context"
	"io"
	"time"
)

// Provider defines the interface for a remote text-completion endpoint.
type Provider interface {
	// Complete sends one completion request. When req.Stream is true the
	// returned Completion carries an open Body of SSE-framed events that the
	// caller must close; otherwise Text holds the full completion.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// Role is the author of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the ordered message list sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest contains parameters for a single completion call
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Completion is the raw result of a completion call.
type Completion struct {
	Text         string        // Full text for single-shot calls
	FinishReason string        // e.g. "stop", "length", "content_filter"
	Body         io.ReadCloser // Event stream for streaming calls, nil otherwise
	Usage        UsageInfo
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string        // Model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// Finish reasons reported by OpenAI-compatible endpoints.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	RequestTimeout time.Duration // Timeout for single-shot requests
}

// Generation defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)
