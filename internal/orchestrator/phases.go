package orchestrator

import (
	"context"
	"fmt"

	"github.com/valpere/scenetran/internal/agent"
	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/script"
)

// ingest loads the on-disk scripts into work units. An ingest that
// resolves no units is a missing dependency and fatal before any other
// phase runs.
func (o *Orchestrator) ingest(ctx context.Context) error {
	type loaded struct {
		units []script.Unit
		err   error
	}
	// Filesystem work runs on its own goroutine so a slow volume cannot
	// wedge an otherwise-cancellable run.
	ch := make(chan loaded, 1)
	go func() {
		units, err := script.LoadDir(o.cfg.ScriptDir)
		ch <- loaded{units: units, err: err}
	}()

	var l loaded
	select {
	case <-ctx.Done():
		return run.Wrap(run.KindCanceled, run.PhaseIngest, ctx.Err(), "ingest abandoned")
	case l = <-ch:
	}
	if l.err != nil {
		return run.Wrap(run.KindMissingDependency, run.PhaseIngest, l.err, "load scripts")
	}
	if len(l.units) == 0 {
		return run.Errorf(run.KindMissingDependency, run.PhaseIngest,
			"no work units resolved from %s", o.cfg.ScriptDir)
	}

	o.rc.SetUnits(l.units)

	if o.rc.SourceLang == "" || o.rc.SourceLang == "auto" {
		if detected, ok := script.DetectSourceLanguage(l.units); ok {
			o.rc.SourceLang = detected
		}
	}
	return nil
}

// agentPhase runs one pool-driven phase: batch, dispatch, verify, merge,
// persist. Outputs are merged per identifier; batches never share an
// identifier, so completion order does not matter.
func (o *Orchestrator) agentPhase(ctx context.Context, phase run.Phase) error {
	if len(o.rc.Units()) == 0 {
		return run.Errorf(run.KindMissingDependency, phase, "no work units; was ingest configured?")
	}
	pool, err := o.poolFor(phase)
	if err != nil {
		return err
	}

	batches := script.MakeBatches(o.rc.Units(), o.cfg.BatchSize)
	inputs := make([]agent.Input, len(batches))
	for i, b := range batches {
		inputs[i] = o.buildInput(phase, b)
	}

	outputs, err := pool.RunBatches(ctx, inputs)
	if err != nil {
		return err
	}

	proposed := make(run.PhaseOutput)
	for _, out := range outputs {
		for id, r := range out.Lines {
			proposed[id] = r
		}
	}

	// The edit phase is irreversible once persisted, so it is gated:
	// validate first, and on failure discard the proposed output entirely.
	// There is never a write-then-validate sequence.
	if phase == run.PhaseEdit {
		if gerr := checkEditGate(o.rc.Units(), proposed); gerr != nil {
			return gerr
		}
	}

	o.rc.Reset(phase)
	o.rc.Merge(phase, proposed)
	return o.persist(ctx, phase, proposed)
}

// buildInput assembles the typed input of one batch, carrying forward the
// upstream phase outputs each phase consumes.
func (o *Orchestrator) buildInput(phase run.Phase, b script.Batch) agent.Input {
	in := agent.Input{
		Phase:      phase,
		Batch:      b,
		SourceLang: o.rc.SourceLang,
		TargetLang: o.rc.TargetLang,
	}
	switch phase {
	case run.PhaseTranslate:
		in.Drafts = textsFor(o.rc.Output(run.PhasePretranslation), b)
		in.Review = notesFor(o.rc.Output(run.PhaseContext), b)
	case run.PhaseQA:
		in.Drafts = textsFor(o.rc.Output(run.PhaseTranslate), b)
	case run.PhaseEdit:
		in.Drafts = textsFor(o.rc.Output(run.PhaseTranslate), b)
		in.Review = notesFor(o.rc.Output(run.PhaseQA), b)
	}
	return in
}

func textsFor(out run.PhaseOutput, b script.Batch) map[string]string {
	if out == nil {
		return nil
	}
	m := make(map[string]string, len(b.Units))
	for _, u := range b.Units {
		if r, ok := out[u.ID]; ok {
			m[u.ID] = r.Text
		}
	}
	return m
}

func notesFor(out run.PhaseOutput, b script.Batch) map[string]string {
	if out == nil {
		return nil
	}
	m := make(map[string]string, len(b.Units))
	for _, u := range b.Units {
		if r, ok := out[u.ID]; ok {
			m[u.ID] = r.Notes
		}
	}
	return m
}

// pretranslate produces machine drafts scene batch by scene batch. It uses
// the external machine-translation collaborator rather than an agent pool.
func (o *Orchestrator) pretranslate(ctx context.Context) error {
	if o.opts.Pretranslator == nil {
		return run.Errorf(run.KindConfiguration, run.PhasePretranslation, "no pretranslation provider configured")
	}
	if len(o.rc.Units()) == 0 {
		return run.Errorf(run.KindMissingDependency, run.PhasePretranslation, "no work units; was ingest configured?")
	}

	proposed := make(run.PhaseOutput)
	for _, b := range script.MakeBatches(o.rc.Units(), o.cfg.BatchSize) {
		texts := make([]string, len(b.Units))
		for i, u := range b.Units {
			texts[i] = u.Text
		}
		drafts, err := o.opts.Pretranslator.TranslateBatch(ctx, texts, o.rc.SourceLang, o.rc.TargetLang)
		if err != nil {
			return run.Wrap(run.KindInternal, run.PhasePretranslation, err,
				fmt.Sprintf("batch %s", b.Label()))
		}
		if len(drafts) != len(b.Units) {
			return run.Errorf(run.KindInternal, run.PhasePretranslation,
				"batch %s: expected %d drafts, got %d", b.Label(), len(b.Units), len(drafts))
		}
		for i, u := range b.Units {
			proposed[u.ID] = run.Result{Text: drafts[i]}
		}
	}

	o.rc.Reset(run.PhasePretranslation)
	o.rc.Merge(run.PhasePretranslation, proposed)
	return o.persist(ctx, run.PhasePretranslation, proposed)
}

// persist writes a completed phase output through the store. A persistence
// failure fails the producing phase; nothing partial is ever committed
// because the store replaces the phase in one transaction.
func (o *Orchestrator) persist(ctx context.Context, phase run.Phase, out run.PhaseOutput) error {
	if o.opts.Store == nil {
		return nil
	}
	if err := o.opts.Store.Persist(ctx, o.rc.ID, phase, out); err != nil {
		return run.Wrap(run.KindPersistence, phase, err, "persist phase output")
	}
	return nil
}
