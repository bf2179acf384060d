// Package orchestrator drives one pipeline run: it executes the configured
// phase sequence strictly in order, builds agent pools through the backend
// factory, batches work units, merges phase outputs into the run context,
// and persists them through the store. The run context is mutated only
// here; concurrent batch workers never touch shared state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/valpere/scenetran/internal/agent"
	"github.com/valpere/scenetran/internal/backend"
	"github.com/valpere/scenetran/internal/config"
	"github.com/valpere/scenetran/internal/run"
)

// Persister is the external storage collaborator for durable phase
// outputs.
type Persister interface {
	BeginRun(ctx context.Context, runID, sourceLang, targetLang string) error
	Persist(ctx context.Context, runID string, phase run.Phase, out run.PhaseOutput) error
	FinishRun(ctx context.Context, runID, status, errMsg string) error
}

// Pretranslator produces machine drafts for the pretranslation phase.
type Pretranslator interface {
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// ConstructFunc matches backend.Construct; tests substitute fakes.
type ConstructFunc func(backend.Endpoint, backend.Settings) (backend.Caller, backend.ResolvedSettings, error)

// ProbeFunc matches backend.Probe.
type ProbeFunc func(context.Context, backend.Caller) backend.ProbeResult

// Options wires the orchestrator's collaborators.
type Options struct {
	Store         Persister
	Pretranslator Pretranslator
	Sink          run.Sink
	Construct     ConstructFunc
	Probe         ProbeFunc
}

// Orchestrator owns the run context and the pool bundles of one execution.
type Orchestrator struct {
	cfg  *config.Config
	opts Options
	rc   *run.Context

	// callers are constructed per phase: two phases sharing an endpoint may
	// still carry different settings, so each assignment gets its own
	// handle. Pools are reused across re-entries of the same phase.
	callers map[run.Phase]constructed
	pools   map[run.Phase]*agent.Pool
}

type constructed struct {
	caller   backend.Caller
	resolved backend.ResolvedSettings
}

// New builds an orchestrator for one run. cfg must already be validated.
func New(cfg *config.Config, opts Options) *Orchestrator {
	if opts.Sink == nil {
		opts.Sink = run.NopSink{}
	}
	if opts.Construct == nil {
		opts.Construct = backend.Construct
	}
	if opts.Probe == nil {
		opts.Probe = backend.Probe
	}
	return &Orchestrator{
		cfg:     cfg,
		opts:    opts,
		rc:      run.NewContext(uuid.New().String()),
		callers: make(map[run.Phase]constructed),
		pools:   make(map[run.Phase]*agent.Pool),
	}
}

// Context exposes the run context for inspection after Run returns.
func (o *Orchestrator) Context() *run.Context { return o.rc }

// Run executes the configured phase sequence. Exactly one classified
// terminal error is surfaced; phases already persisted stay persisted.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	o.rc.SourceLang = o.cfg.SourceLang
	o.rc.TargetLang = o.cfg.TargetLang

	if o.opts.Store != nil {
		if serr := o.opts.Store.BeginRun(ctx, o.rc.ID, o.rc.SourceLang, o.rc.TargetLang); serr != nil {
			return run.Wrap(run.KindPersistence, "", serr, "record run")
		}
	}
	o.opts.Sink.Emit(run.Event{Type: run.EventRunStarted, Detail: o.rc.ID})

	defer func() {
		err = classify(err)
		if o.opts.Store != nil {
			status, msg := "completed", ""
			if err != nil {
				status, msg = "failed", err.Error()
			}
			// Terminal bookkeeping only; the run outcome is already decided.
			_ = o.opts.Store.FinishRun(context.WithoutCancel(ctx), o.rc.ID, status, msg)
		}
		if err != nil {
			o.opts.Sink.Emit(run.Event{Type: run.EventRunFailed, Err: err})
		} else {
			o.opts.Sink.Emit(run.Event{Type: run.EventRunCompleted, Detail: o.rc.ID})
		}
	}()

	if perr := o.preflight(ctx); perr != nil {
		return perr
	}

	for _, phase := range o.cfg.Phases {
		o.opts.Sink.Emit(run.Event{Type: run.EventPhaseStarted, Phase: phase})
		var perr error
		switch phase {
		case run.PhaseIngest:
			perr = o.ingest(ctx)
		case run.PhasePretranslation:
			perr = o.pretranslate(ctx)
		case run.PhaseExport:
			perr = o.export(ctx)
		default:
			perr = o.agentPhase(ctx, phase)
		}
		if perr != nil {
			return perr
		}
		o.opts.Sink.Emit(run.Event{Type: run.EventPhaseCompleted, Phase: phase})
	}
	return nil
}

// preflight constructs a caller for every agent phase the run will execute
// and, when enabled, probes each distinct endpoint with one live request.
// Probe failure fails the run before any phase executes.
func (o *Orchestrator) preflight(ctx context.Context) error {
	probed := make(map[string]bool)
	for _, phase := range o.cfg.Phases {
		if !run.AgentPhase(phase) {
			continue
		}
		ac, ep, err := o.cfg.Agent(phase)
		if err != nil {
			return err
		}
		caller, resolved, cerr := o.opts.Construct(ep, ac.Settings)
		if cerr != nil {
			return cerr
		}
		o.callers[phase] = constructed{caller: caller, resolved: resolved}

		if !o.cfg.Probe || probed[ac.Endpoint] {
			continue
		}
		probed[ac.Endpoint] = true
		pr := o.opts.Probe(ctx, caller)
		o.opts.Sink.Emit(run.Event{
			Type:    run.EventProbeResult,
			Agent:   pr.Endpoint,
			Detail:  fmt.Sprintf("%s (%s)", pr.Class, pr.Model),
			Latency: pr.Latency,
			Err:     probeErr(pr),
		})
		if !pr.OK() {
			return &run.Error{
				Kind:  run.KindProbe,
				Agent: pr.Endpoint,
				Msg:   fmt.Sprintf("%s probe %s: %s", pr.Model, pr.Class, pr.Reason),
			}
		}
	}
	return nil
}

func probeErr(pr backend.ProbeResult) error {
	if pr.OK() {
		return nil
	}
	return fmt.Errorf("%s", pr.Reason)
}

// poolFor returns the phase's pool, building the bundle on first use.
func (o *Orchestrator) poolFor(phase run.Phase) (*agent.Pool, error) {
	if pool, ok := o.pools[phase]; ok {
		return pool, nil
	}
	ac, _, err := o.cfg.Agent(phase)
	if err != nil {
		return nil, err
	}
	c, ok := o.callers[phase]
	if !ok {
		return nil, run.Errorf(run.KindInternal, phase, "caller for phase not constructed")
	}

	runtimes := make([]*agent.Runtime, ac.Count)
	for i := range runtimes {
		id := fmt.Sprintf("%s-%d", phase, i+1)
		runtimes[i] = agent.NewRuntime(id, phase, c.caller, c.resolved, ac.Retry, o.opts.Sink)
	}
	bundle, err := agent.NewBundle(phase, runtimes, ac.MaxParallel, ac.Retry)
	if err != nil {
		return nil, err
	}
	o.opts.Sink.Emit(run.Event{
		Type:  run.EventPoolReady,
		Phase: phase,
		Detail: fmt.Sprintf("%d runtimes, %d max in flight, worst case %d attempts per batch",
			len(runtimes), bundle.MaxParallel, bundle.Policy.MaxTotalAttempts()),
	})
	o.pools[phase] = agent.NewPool(bundle, o.opts.Sink)
	return o.pools[phase], nil
}

// classify guarantees the terminal error carries exactly one Kind. Raw
// errors never escape unclassified.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var re *run.Error
	if errors.As(err, &re) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return run.Wrap(run.KindCanceled, "", err, "run cancelled")
	}
	return run.Wrap(run.KindInternal, "", err, "unclassified failure")
}
