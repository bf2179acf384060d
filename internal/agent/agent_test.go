package agent_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valpere/scenetran/internal/agent"
	"github.com/valpere/scenetran/internal/backend"
	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/script"
)

// fakeCaller lets each test script the backend behavior.
type fakeCaller struct {
	name   string
	model  string
	callFn func(ctx context.Context, req backend.Request) (*backend.Response, error)

	mu    sync.Mutex
	calls []backend.Request
}

func (f *fakeCaller) Name() string  { return f.name }
func (f *fakeCaller) Model() string { return f.model }

func (f *fakeCaller) Call(ctx context.Context, req backend.Request) (*backend.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.callFn(ctx, req)
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCaller) call(i int) backend.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// requestIDs extracts the unit identifiers from the user payload of a
// request, mirroring what a real model sees.
func requestIDs(req backend.Request) []string {
	var payload struct {
		Lines []struct {
			ID string `json:"id"`
		} `json:"lines"`
	}
	for _, m := range req.Messages {
		if m.Role == "user" {
			json.Unmarshal([]byte(m.Content), &payload)
		}
	}
	ids := make([]string, len(payload.Lines))
	for i, l := range payload.Lines {
		ids[i] = l.ID
	}
	return ids
}

// linesResponse renders a well-formed reply for the given identifiers.
func linesResponse(ids []string) *backend.Response {
	type line struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	doc := struct {
		Lines []line `json:"lines"`
	}{}
	for _, id := range ids {
		doc.Lines = append(doc.Lines, line{ID: id, Text: "translated " + id})
	}
	body, _ := json.Marshal(doc)
	return &backend.Response{Content: string(body), Model: "fake-model"}
}

// echoCaller answers every request with a conforming reply for exactly the
// identifiers it was given.
func echoCaller() *fakeCaller {
	f := &fakeCaller{name: "fake", model: "fake-model"}
	f.callFn = func(ctx context.Context, req backend.Request) (*backend.Response, error) {
		return linesResponse(requestIDs(req)), nil
	}
	return f
}

func testBatch(scene string, n int) script.Batch {
	b := script.Batch{Scene: scene}
	for i := 1; i <= n; i++ {
		b.Units = append(b.Units, script.Unit{
			ID:    script.UnitID(scene, i),
			Scene: scene,
			Text:  fmt.Sprintf("line %d", i),
		})
	}
	return b
}

func fastPolicy() agent.RetryPolicy {
	return agent.RetryPolicy{
		SchemaRetries:    1,
		AlignmentRetries: 1,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       2 * time.Millisecond,
	}
}

func resolvedFor(timeout time.Duration) backend.ResolvedSettings {
	return backend.ResolvedSettings{MaxTokens: 1024, Timeout: timeout}
}

func translateInput(b script.Batch) agent.Input {
	return agent.Input{
		Phase:      run.PhaseTranslate,
		Batch:      b,
		SourceLang: "ja",
		TargetLang: "en",
	}
}
