package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/script"
)

// Bundle is the realized set of runtimes for one phase plus its concurrency
// ceiling and retry policy. It is read-only after construction and safely
// shared across concurrent dispatches.
type Bundle struct {
	Phase       run.Phase
	Runtimes    []*Runtime
	MaxParallel int
	Policy      RetryPolicy
}

// NewBundle validates and freezes the bundle.
func NewBundle(phase run.Phase, runtimes []*Runtime, maxParallel int, policy RetryPolicy) (*Bundle, error) {
	if len(runtimes) == 0 {
		return nil, run.Errorf(run.KindConfiguration, phase, "no runtimes for phase")
	}
	if maxParallel <= 0 {
		maxParallel = len(runtimes)
	}
	return &Bundle{
		Phase:       phase,
		Runtimes:    runtimes,
		MaxParallel: maxParallel,
		Policy:      policy.Normalize(),
	}, nil
}

// Pool dispatches batches against a bundle, verifying identifier alignment
// per batch and retrying mismatches with structured feedback.
type Pool struct {
	bundle *Bundle
	sink   run.Sink
}

// NewPool wraps a bundle. The sink receives alignment-retry and
// batch-completion events.
func NewPool(bundle *Bundle, sink run.Sink) *Pool {
	if sink == nil {
		sink = run.NopSink{}
	}
	return &Pool{bundle: bundle, sink: sink}
}

// Phase returns the phase this pool serves.
func (p *Pool) Phase() run.Phase { return p.bundle.Phase }

// RunBatches dispatches every input with at most MaxParallel calls in
// flight; the remainder queue on the semaphore. Outputs come back indexed
// like the inputs.
//
// Failure policy: by default one batch's exhaustion does not cancel
// sibling in-flight batches: they drain to completion and the phase fails
// once all outcomes are known, surfacing the first terminal error. With
// Policy.FailFast the siblings are cancelled immediately. An operator
// cancellation of ctx always abandons in-flight calls and surfaces the
// cancellation classification instead.
func (p *Pool) RunBatches(ctx context.Context, inputs []Input) ([]Output, error) {
	dispatchCtx, cancelSiblings := context.WithCancel(ctx)
	defer cancelSiblings()

	sem := semaphore.NewWeighted(int64(p.bundle.MaxParallel))
	outputs := make([]Output, len(inputs))
	errs := make([]error, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		if err := sem.Acquire(dispatchCtx, 1); err != nil {
			// Dispatch stops early only on cancellation (operator or
			// fail-fast); remaining batches are never started.
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, in Input) {
			defer wg.Done()
			defer sem.Release(1)
			out, err := p.runAligned(dispatchCtx, i, in)
			outputs[i], errs[i] = out, err
			if err != nil && p.bundle.Policy.FailFast {
				cancelSiblings()
			}
		}(i, in)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, run.Wrap(run.KindCanceled, p.bundle.Phase, err, "phase cancelled")
	}
	for _, err := range errs {
		if err == nil {
			continue
		}
		if run.KindOf(err) == run.KindCanceled && p.bundle.Policy.FailFast {
			// Sibling cancellation fallout; the originating error follows.
			continue
		}
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

// runAligned runs one batch through the alignment-retry loop. Runtime
// schema retries happen inside each Run call; this layer only inspects the
// identifier sets of otherwise-valid outputs.
func (p *Pool) runAligned(ctx context.Context, i int, in Input) (Output, error) {
	rt := p.bundle.Runtimes[i%len(p.bundle.Runtimes)]
	attempts := p.bundle.Policy.AlignmentRetries + 1
	wait := p.bundle.Policy.newBackoff()
	wantIDs := in.Batch.IDs()

	var extra, missing []string
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := rt.Run(ctx, in)
		if err != nil {
			return Output{}, err
		}

		got := make(map[string]struct{}, len(out.Lines))
		for id := range out.Lines {
			got[id] = struct{}{}
		}
		extra, missing = script.DiffIDs(wantIDs, got)
		if len(extra) == 0 && len(missing) == 0 {
			p.sink.Emit(run.Event{
				Type:    run.EventBatchCompleted,
				Phase:   p.bundle.Phase,
				Agent:   rt.ID(),
				Batch:   in.Batch.Label(),
				Attempt: attempt,
			})
			return out, nil
		}

		feedback := alignmentFeedback(extra, missing)
		if attempt < attempts {
			in.Feedback = append(in.Feedback, feedback)
			p.sink.Emit(run.Event{
				Type:    run.EventAlignmentRetry,
				Phase:   p.bundle.Phase,
				Agent:   rt.ID(),
				Batch:   in.Batch.Label(),
				Attempt: attempt,
				Detail:  feedback,
			})
			if err := sleep(ctx, wait); err != nil {
				return Output{}, run.Wrap(run.KindCanceled, p.bundle.Phase, err, "retry wait interrupted")
			}
		}
	}

	return Output{}, &run.Error{
		Kind:    run.KindAlignment,
		Phase:   p.bundle.Phase,
		Agent:   rt.ID(),
		Msg:     fmt.Sprintf("batch %s misaligned after %d attempts", in.Batch.Label(), attempts),
		Extra:   extra,
		Missing: missing,
	}
}

// alignmentFeedback renders the mismatch for the resubmission prompt.
func alignmentFeedback(extra, missing []string) string {
	var parts []string
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra: [%s]", strings.Join(extra, ", ")))
	}
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing: [%s]", strings.Join(missing, ", ")))
	}
	return strings.Join(parts, ", ") + " — return results for all provided identifiers"
}
