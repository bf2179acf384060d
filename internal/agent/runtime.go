package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/valpere/scenetran/internal/backend"
	"github.com/valpere/scenetran/internal/run"
)

// Runtime wraps one backend caller with the typed input/output contract of
// a phase: per-call timeout, output-schema validation, and a bounded schema
// retry that resubmits with a note describing the previous failure.
// Runtimes hold no per-call state and are safe for concurrent use.
type Runtime struct {
	id       string
	phase    run.Phase
	caller   backend.Caller
	resolved backend.ResolvedSettings
	policy   RetryPolicy
	sink     run.Sink
}

// NewRuntime builds a runtime for one phase. id names the agent in events
// and errors (e.g. "translate-2").
func NewRuntime(id string, phase run.Phase, caller backend.Caller, resolved backend.ResolvedSettings, policy RetryPolicy, sink run.Sink) *Runtime {
	if sink == nil {
		sink = run.NopSink{}
	}
	return &Runtime{
		id:       id,
		phase:    phase,
		caller:   caller,
		resolved: resolved,
		policy:   policy.Normalize(),
		sink:     sink,
	}
}

// ID returns the agent identity.
func (r *Runtime) ID() string { return r.id }

// Run executes one batch call. Schema failures and timeouts share the
// retry bound; each resubmission appends a note describing the failure.
// Exhaustion surfaces as an output-validation error carrying the last
// failure, the phase, and the agent identity.
func (r *Runtime) Run(ctx context.Context, in Input) (Output, error) {
	attempts := r.policy.SchemaRetries + 1
	wait := r.policy.newBackoff()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		req, markers, err := encodeRequest(in)
		if err != nil {
			// Encoding failures are deterministic; retrying cannot help.
			return Output{}, run.Wrap(run.KindInternal, r.phase, err, "encode request")
		}

		cctx, cancel := context.WithTimeout(ctx, r.resolved.Timeout)
		resp, callErr := r.caller.Call(cctx, req)
		cancel()

		if callErr != nil {
			if ctx.Err() != nil {
				return Output{}, run.Wrap(run.KindCanceled, r.phase, ctx.Err(), "call abandoned")
			}
			if errors.Is(callErr, context.DeadlineExceeded) {
				lastErr = fmt.Errorf("call timed out after %s", r.resolved.Timeout)
			} else {
				lastErr = callErr
			}
		} else {
			out, decErr := decodeOutput(in, markers, resp)
			if decErr == nil {
				return out, nil
			}
			lastErr = decErr
		}

		if attempt < attempts {
			in.Feedback = append(in.Feedback,
				fmt.Sprintf("your previous response was rejected: %v", lastErr))
			r.sink.Emit(run.Event{
				Type:    run.EventSchemaRetry,
				Phase:   r.phase,
				Agent:   r.id,
				Batch:   in.Batch.Label(),
				Attempt: attempt,
				Detail:  lastErr.Error(),
			})
			if err := sleep(ctx, wait); err != nil {
				return Output{}, run.Wrap(run.KindCanceled, r.phase, err, "retry wait interrupted")
			}
		}
	}

	return Output{}, &run.Error{
		Kind:  run.KindOutputValidation,
		Phase: r.phase,
		Agent: r.id,
		Msg:   fmt.Sprintf("batch %s failed schema validation after %d attempts", in.Batch.Label(), attempts),
		Err:   lastErr,
	}
}
