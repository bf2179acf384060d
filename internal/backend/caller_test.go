package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatOK(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		}
		json.NewEncoder(w).Encode(reply)
	}
}

func buildCaller(t *testing.T, ep Endpoint) Caller {
	t.Helper()
	c, _, err := Construct(ep, Settings{})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	return c
}

func TestAggregatorCaller_PayloadAndHeaders(t *testing.T) {
	var captured map[string]any
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		chatOK(`{"ok":true}`)(w, r)
	}))
	defer server.Close()

	c := buildCaller(t, Endpoint{
		Name:             "router",
		Kind:             KindAggregator,
		BaseURL:          server.URL,
		Model:            "qwen/qwen3-32b",
		APIKey:           "sk-test",
		AllowedProviders: []string{"qwen", "deepinfra"},
	})

	resp, err := c.Call(context.Background(), Request{
		Messages:   []Message{{Role: "user", Content: "hi"}},
		SchemaName: "probe",
		Schema:     json.RawMessage(`{"type":"object"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != `{"ok":true}` || resp.Model != "test-model" {
		t.Errorf("unexpected response: %+v", resp)
	}

	if captured["model"] != "qwen/qwen3-32b" {
		t.Errorf("unexpected model: %v", captured["model"])
	}
	provider, ok := captured["provider"].(map[string]any)
	if !ok {
		t.Fatalf("expected provider block, got %v", captured["provider"])
	}
	only, _ := provider["only"].([]any)
	if len(only) != 2 || only[0] != "qwen" {
		t.Errorf("unexpected provider.only: %v", only)
	}
	rf, ok := captured["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_schema" {
		t.Errorf("expected strict json_schema response format, got %v", captured["response_format"])
	}

	if got := headers.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("unexpected auth header: %q", got)
	}
	if headers.Get("HTTP-Referer") == "" || headers.Get("X-Title") == "" {
		t.Error("aggregator calls should carry attribution headers")
	}
}

func TestGenericCaller_NoProviderBlock(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		chatOK("ok")(w, r)
	}))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "local", BaseURL: server.URL, Model: "gemma3"})
	if _, err := c.Call(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := captured["provider"]; present {
		t.Error("generic caller must not send a provider block")
	}
}

func TestCaller_DefaultTuningOmitted(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		chatOK("ok")(w, r)
	}))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "local", BaseURL: server.URL, Model: "gemma3"})
	if _, err := c.Call(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"frequency_penalty", "presence_penalty", "temperature", "reasoning_effort"} {
		if _, present := captured[key]; present {
			t.Errorf("unset %s should never reach the wire", key)
		}
	}
}

func TestCaller_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "local", BaseURL: server.URL, Model: "gemma3"})
	_, err := c.Call(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	ue, ok := err.(*UpstreamError)
	if !ok {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if ue.Status != http.StatusTooManyRequests || ue.Message != "rate limited" {
		t.Errorf("unexpected upstream error: %+v", ue)
	}
}

func TestCaller_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "m", "choices": []any{}})
	}))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "local", BaseURL: server.URL, Model: "gemma3"})
	if _, err := c.Call(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Error("expected error for empty choices")
	}
}
