// Package backend constructs callable handles for LLM-style completion
// endpoints. A configured endpoint resolves once, at construction time, to
// one of exactly two Caller implementations: an aggregator-routed caller
// (OpenRouter-style, model ids of the form provider/model with an optional
// upstream-provider allow-list) or a generic OpenAI-compatible caller.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Kind selects the caller implementation for an endpoint.
type Kind string

const (
	// KindAuto defers the choice to the base-URL shape.
	KindAuto Kind = ""
	// KindAggregator routes through an aggregator that picks an upstream
	// provider from the model identifier.
	KindAggregator Kind = "aggregator"
	// KindGeneric talks to a single OpenAI-compatible endpoint.
	KindGeneric Kind = "generic"
)

// Endpoint describes one callable backend as it arrives from configuration.
type Endpoint struct {
	Name             string        `mapstructure:"name"`
	BaseURL          string        `mapstructure:"base_url"`
	Kind             Kind          `mapstructure:"kind"`
	Model            string        `mapstructure:"model"`
	APIKey           string        `mapstructure:"api_key"`
	AllowedProviders []string      `mapstructure:"allowed_providers"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// Message is one chat message of a structured-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a structured-completion call. Schema, when set, is sent as a
// strict json_schema response format so the model must reply with a
// conforming JSON document.
type Request struct {
	Messages   []Message
	SchemaName string
	Schema     json.RawMessage
}

// Response is the decoded completion.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Caller issues one structured-completion request. Implementations hold no
// per-call state and are safe for concurrent use.
type Caller interface {
	Name() string
	Model() string
	Call(ctx context.Context, req Request) (*Response, error)
}

// UpstreamError reports a non-2xx reply from the backend, preserving the
// raw status and message for probe classification and diagnostics.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}
