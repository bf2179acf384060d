package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ProbeClass distinguishes why a probe failed. A rejected probe means the
// endpoint answered but no compatible upstream could serve the structured
// request shape; unreachable means the request never got an answer.
type ProbeClass string

const (
	ProbePassed      ProbeClass = "passed"
	ProbeRejected    ProbeClass = "rejected"
	ProbeUnreachable ProbeClass = "unreachable"
)

// ProbeResult reports one live preflight check.
type ProbeResult struct {
	Endpoint string
	Model    string
	Class    ProbeClass
	Latency  time.Duration
	Reason   string
}

// OK reports whether the probe passed.
func (r ProbeResult) OK() bool { return r.Class == ProbePassed }

// probeSchema is the minimal strict schema used by the preflight request.
// It exercises the same json_schema response shape production calls use, so
// a pass is evidence the endpoint/model combination can serve them.
var probeSchema = json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}},"required":["ok"],"additionalProperties":false}`)

// Probe issues one real minimal structured request against the caller. It
// never consults a static capability table: the only trustworthy signal for
// "can this model do strict JSON output through this route" is a live call.
func Probe(ctx context.Context, c Caller) (result ProbeResult) {
	result.Endpoint = c.Name()
	result.Model = c.Model()
	start := time.Now()
	// Named return so the deferred write survives every return path.
	defer func() { result.Latency = time.Since(start) }()

	resp, err := c.Call(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: "You are a connectivity probe. Follow the response schema exactly."},
			{Role: "user", Content: `Reply with {"ok": true}.`},
		},
		SchemaName: "probe",
		Schema:     probeSchema,
	})
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			// The endpoint answered; the request shape (or the routing
			// for it) was refused.
			result.Class = ProbeRejected
			result.Reason = ue.Error()
			if ue.Status >= http.StatusInternalServerError {
				result.Class = ProbeUnreachable
			}
			return result
		}
		result.Class = ProbeUnreachable
		result.Reason = err.Error()
		return result
	}

	var echo struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &echo); err != nil {
		result.Class = ProbeRejected
		result.Reason = fmt.Sprintf("non-conforming probe reply: %v", err)
		return result
	}

	result.Class = ProbePassed
	return result
}
