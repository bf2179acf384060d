package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbe_Passed(t *testing.T) {
	server := httptest.NewServer(chatOK(`{"ok": true}`))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "local", BaseURL: server.URL, Model: "gemma3"})
	result := Probe(context.Background(), c)
	if result.Class != ProbePassed {
		t.Errorf("expected passed, got %s (%s)", result.Class, result.Reason)
	}
	if !result.OK() {
		t.Error("passed probe should report OK")
	}
	if result.Endpoint != "local" || result.Model != "gemma3" {
		t.Errorf("unexpected identity: %+v", result)
	}
}

func TestProbe_RejectedOn4xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "no endpoints found matching your data policy"}})
	}))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "router", BaseURL: server.URL, Model: "gemma3"})
	result := Probe(context.Background(), c)
	if result.Class != ProbeRejected {
		t.Errorf("expected rejected, got %s", result.Class)
	}
	if result.Reason == "" {
		t.Error("rejection should carry the upstream reason")
	}
}

func TestProbe_UnreachableOn5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "router", BaseURL: server.URL, Model: "gemma3"})
	if result := Probe(context.Background(), c); result.Class != ProbeUnreachable {
		t.Errorf("expected unreachable, got %s", result.Class)
	}
}

func TestProbe_UnreachableOnTransportFailure(t *testing.T) {
	server := httptest.NewServer(chatOK("unused"))
	server.Close() // connection refused from here on

	c := buildCaller(t, Endpoint{Name: "router", BaseURL: server.URL, Model: "gemma3"})
	if result := Probe(context.Background(), c); result.Class != ProbeUnreachable {
		t.Errorf("expected unreachable, got %s", result.Class)
	}
}

func TestProbe_RecordsLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		chatOK(`{"ok": true}`)(w, r)
	}))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "local", BaseURL: server.URL, Model: "gemma3"})
	result := Probe(context.Background(), c)
	if result.Class != ProbePassed {
		t.Fatalf("expected passed, got %s (%s)", result.Class, result.Reason)
	}
	if result.Latency < 20*time.Millisecond {
		t.Errorf("latency should cover the round trip, got %s", result.Latency)
	}

	server.Close()
	if result := Probe(context.Background(), c); result.Latency <= 0 {
		t.Errorf("failed probes should record latency too, got %s", result.Latency)
	}
}

func TestProbe_RejectedOnBadEcho(t *testing.T) {
	server := httptest.NewServer(chatOK("sure, here you go!"))
	defer server.Close()

	c := buildCaller(t, Endpoint{Name: "router", BaseURL: server.URL, Model: "gemma3"})
	if result := Probe(context.Background(), c); result.Class != ProbeRejected {
		t.Errorf("expected rejected for non-conforming reply, got %s", result.Class)
	}
}
