package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// chatPayload is the wire form of a structured-completion request. Optional
// tuning fields use omitempty so an unset parameter never reaches the wire;
// for aggregator targets an explicit penalty would needlessly narrow the
// eligible-upstream set.
type chatPayload struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	FrequencyPenalty float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64         `json:"presence_penalty,omitempty"`
	ReasoningEffort  string          `json:"reasoning_effort,omitempty"`
	ResponseFormat   *responseFormat `json:"response_format,omitempty"`
	Provider         *providerPrefs  `json:"provider,omitempty"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// providerPrefs is the aggregator-only routing block: Only restricts the
// upstream providers eligible to serve the request.
type providerPrefs struct {
	Only []string `json:"only,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// postChat sends one chat-completion request and decodes the reply. It is
// shared by both caller implementations; only the payload decoration and
// headers differ between them.
func postChat(ctx context.Context, client *http.Client, baseURL, apiKey string, payload chatPayload, headers map[string]string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var cr chatResponse
	if resp.StatusCode != http.StatusOK {
		msg := ""
		if json.NewDecoder(resp.Body).Decode(&cr) == nil && cr.Error != nil {
			msg = cr.Error.Message
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: cr.Error.Message}
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	return &Response{
		Content:          cr.Choices[0].Message.Content,
		Model:            cr.Model,
		PromptTokens:     cr.Usage.PromptTokens,
		CompletionTokens: cr.Usage.CompletionTokens,
	}, nil
}

func basePayload(model string, rs ResolvedSettings, req Request) chatPayload {
	p := chatPayload{
		Model:            model,
		Messages:         req.Messages,
		MaxTokens:        rs.MaxTokens,
		Temperature:      rs.Temperature,
		FrequencyPenalty: rs.FrequencyPenalty,
		PresencePenalty:  rs.PresencePenalty,
		ReasoningEffort:  string(rs.Effort),
	}
	if len(req.Schema) > 0 {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		p.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Name: name, Strict: true, Schema: req.Schema},
		}
	}
	return p
}

// aggregatorCaller talks to an aggregator-routed backend. The model
// identifier selects the upstream; the provider block carries the optional
// allow-list.
type aggregatorCaller struct {
	endpoint Endpoint
	resolved ResolvedSettings
	client   *http.Client
}

func newAggregatorCaller(ep Endpoint, rs ResolvedSettings, client *http.Client) *aggregatorCaller {
	return &aggregatorCaller{endpoint: ep, resolved: rs, client: client}
}

func (c *aggregatorCaller) Name() string  { return c.endpoint.Name }
func (c *aggregatorCaller) Model() string { return c.endpoint.Model }

func (c *aggregatorCaller) Call(ctx context.Context, req Request) (*Response, error) {
	payload := basePayload(c.endpoint.Model, c.resolved, req)
	if len(c.endpoint.AllowedProviders) > 0 {
		payload.Provider = &providerPrefs{Only: c.endpoint.AllowedProviders}
	}
	headers := map[string]string{
		"HTTP-Referer": "https://scenetran.local",
		"X-Title":      "SceneTran",
	}
	return postChat(ctx, c.client, c.endpoint.BaseURL, c.endpoint.APIKey, payload, headers)
}

// genericCaller talks to a single OpenAI-compatible endpoint (a local
// server, a direct provider API). No provider routing block is ever sent.
type genericCaller struct {
	endpoint Endpoint
	resolved ResolvedSettings
	client   *http.Client
}

func newGenericCaller(ep Endpoint, rs ResolvedSettings, client *http.Client) *genericCaller {
	return &genericCaller{endpoint: ep, resolved: rs, client: client}
}

func (c *genericCaller) Name() string  { return c.endpoint.Name }
func (c *genericCaller) Model() string { return c.endpoint.Model }

func (c *genericCaller) Call(ctx context.Context, req Request) (*Response, error) {
	payload := basePayload(c.endpoint.Model, c.resolved, req)
	return postChat(ctx, c.client, c.endpoint.BaseURL, c.endpoint.APIKey, payload, nil)
}
