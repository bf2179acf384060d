package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valpere/scenetran/internal/agent"
	"github.com/valpere/scenetran/internal/backend"
	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/script"
)

func TestRuntime_Success(t *testing.T) {
	caller := echoCaller()
	rt := agent.NewRuntime("translate-1", run.PhaseTranslate, caller, resolvedFor(time.Second), fastPolicy(), nil)

	out, err := rt.Run(context.Background(), translateInput(testBatch("a", 3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(out.Lines))
	}
	if out.Lines["a_002"].Text != "translated a_002" {
		t.Errorf("unexpected line: %+v", out.Lines["a_002"])
	}
	if caller.callCount() != 1 {
		t.Errorf("expected single call, got %d", caller.callCount())
	}
}

func TestRuntime_SchemaRetryWithFeedback(t *testing.T) {
	caller := &fakeCaller{name: "fake", model: "fake-model"}
	caller.callFn = func(ctx context.Context, req backend.Request) (*backend.Response, error) {
		if caller.callCount() == 1 {
			return &backend.Response{Content: "this is not json"}, nil
		}
		return linesResponse(requestIDs(req)), nil
	}

	rt := agent.NewRuntime("translate-1", run.PhaseTranslate, caller, resolvedFor(time.Second), fastPolicy(), nil)
	out, err := rt.Run(context.Background(), translateInput(testBatch("a", 2)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(out.Lines))
	}
	if caller.callCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", caller.callCount())
	}

	second := caller.call(1)
	sys := second.Messages[0].Content
	if !strings.Contains(sys, "previous response was rejected") {
		t.Errorf("resubmission should carry a rejection note, got %q", sys)
	}
}

func TestRuntime_SchemaExhaustion(t *testing.T) {
	caller := &fakeCaller{name: "fake", model: "fake-model"}
	caller.callFn = func(ctx context.Context, req backend.Request) (*backend.Response, error) {
		return &backend.Response{Content: "still not json"}, nil
	}

	rt := agent.NewRuntime("translate-2", run.PhaseTranslate, caller, resolvedFor(time.Second), fastPolicy(), nil)
	_, err := rt.Run(context.Background(), translateInput(testBatch("a", 1)))
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if run.KindOf(err) != run.KindOutputValidation {
		t.Errorf("expected output validation kind, got %s", run.KindOf(err))
	}
	var re *run.Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *run.Error, got %T", err)
	}
	if re.Agent != "translate-2" || re.Phase != run.PhaseTranslate {
		t.Errorf("error should name agent and phase: %+v", re)
	}
	if caller.callCount() != 2 {
		t.Errorf("schema retries 1 means 2 attempts, got %d", caller.callCount())
	}
}

func TestRuntime_TimeoutCountsTowardBound(t *testing.T) {
	caller := &fakeCaller{name: "fake", model: "fake-model"}
	caller.callFn = func(ctx context.Context, req backend.Request) (*backend.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	rt := agent.NewRuntime("translate-1", run.PhaseTranslate, caller, resolvedFor(10*time.Millisecond), fastPolicy(), nil)
	_, err := rt.Run(context.Background(), translateInput(testBatch("a", 1)))
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if run.KindOf(err) != run.KindOutputValidation {
		t.Errorf("timeout exhaustion should classify as output validation, got %s", run.KindOf(err))
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error should name the timeout, got %q", err)
	}
	if caller.callCount() != 2 {
		t.Errorf("timeouts share the retry bound, expected 2 attempts, got %d", caller.callCount())
	}
}

func TestRuntime_OperatorCancel(t *testing.T) {
	caller := &fakeCaller{name: "fake", model: "fake-model"}
	caller.callFn = func(ctx context.Context, req backend.Request) (*backend.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	rt := agent.NewRuntime("translate-1", run.PhaseTranslate, caller, resolvedFor(time.Minute), fastPolicy(), nil)
	_, err := rt.Run(ctx, translateInput(testBatch("a", 1)))
	if run.KindOf(err) != run.KindCanceled {
		t.Errorf("expected canceled, got %v", err)
	}
}

func TestRuntime_DroppedMarkerRejected(t *testing.T) {
	caller := &fakeCaller{name: "fake", model: "fake-model"}
	caller.callFn = func(ctx context.Context, req backend.Request) (*backend.Response, error) {
		// Reply without the [PH0] marker the protected source contains.
		return &backend.Response{Content: `{"lines":[{"id":"a_001","text":"no marker here"}]}`}, nil
	}

	in := translateInput(script.Batch{
		Scene: "a",
		Units: []script.Unit{{ID: "a_001", Scene: "a", Text: "Press {button} to continue"}},
	})
	rt := agent.NewRuntime("translate-1", run.PhaseTranslate, caller, resolvedFor(time.Second), agent.RetryPolicy{InitialBackoff: time.Millisecond}, nil)
	_, err := rt.Run(context.Background(), in)
	if err == nil {
		t.Fatal("expected marker-drop rejection")
	}
	if !strings.Contains(err.Error(), "markers") {
		t.Errorf("error should mention markers, got %q", err)
	}
}
