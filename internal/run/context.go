package run

import (
	"sort"

	"github.com/valpere/scenetran/internal/script"
)

// Result is one per-identifier phase result. Text carries the produced line
// (draft, translation, revision); Notes carries phase commentary (scene
// context, QA findings).
type Result struct {
	Text  string `json:"text"`
	Notes string `json:"notes,omitempty"`
	Model string `json:"model,omitempty"`
}

// PhaseOutput maps work-unit identifier to that phase's result.
type PhaseOutput map[string]Result

// IDs returns the identifier set in sorted order.
func (o PhaseOutput) IDs() []string {
	ids := make([]string, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a shallow copy so callers can hand out snapshots without
// exposing the mutable map.
func (o PhaseOutput) Clone() PhaseOutput {
	c := make(PhaseOutput, len(o))
	for id, r := range o {
		c[id] = r
	}
	return c
}

// Context is the mutable state of one pipeline execution. It is owned and
// mutated exclusively by the orchestrator's merge step; concurrent workers
// never touch it, so it needs no internal locking.
type Context struct {
	ID         string
	SourceLang string
	TargetLang string

	units   []script.Unit
	outputs map[Phase]PhaseOutput
}

// NewContext creates an empty run context.
func NewContext(id string) *Context {
	return &Context{ID: id, outputs: make(map[Phase]PhaseOutput)}
}

// SetUnits installs the ingested work units. Units are immutable after
// ingest; the slice is copied to enforce that.
func (c *Context) SetUnits(units []script.Unit) {
	c.units = make([]script.Unit, len(units))
	copy(c.units, units)
}

// Units returns the ingested work units.
func (c *Context) Units() []script.Unit { return c.units }

// Merge folds a (possibly partial) phase output into the accumulated output
// for that phase, overwriting by identifier. Merging the same output twice
// is a no-op, and batches never share identifiers, so out-of-order batch
// completion is safe.
func (c *Context) Merge(phase Phase, out PhaseOutput) {
	dst, ok := c.outputs[phase]
	if !ok {
		dst = make(PhaseOutput, len(out))
		c.outputs[phase] = dst
	}
	for id, r := range out {
		dst[id] = r
	}
}

// Reset discards any accumulated output for phase. A re-run replaces a
// phase output wholesale, never partially.
func (c *Context) Reset(phase Phase) {
	delete(c.outputs, phase)
}

// Output returns the accumulated output for phase, or nil when the phase has
// not completed. Callers must treat the result as read-only.
func (c *Context) Output(phase Phase) PhaseOutput {
	return c.outputs[phase]
}

// TextFor returns the latest produced text for a unit, preferring the most
// downstream phase that has one (edit over translate over pretranslation),
// falling back to the source text.
func (c *Context) TextFor(u script.Unit) string {
	for _, p := range []Phase{PhaseEdit, PhaseTranslate, PhasePretranslation} {
		if out := c.outputs[p]; out != nil {
			if r, ok := out[u.ID]; ok && r.Text != "" {
				return r.Text
			}
		}
	}
	return u.Text
}
