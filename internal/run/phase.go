// Package run holds the shared per-execution state of one pipeline run:
// the phase vocabulary, the error taxonomy surfaced to the CLI layer, the
// milestone event sink, and the Run Context that accumulates phase outputs.
package run

// Phase is one ordered pipeline stage. The configured pipeline is a subset
// of these in a configuration-driven order; ingest (when present) is always
// first and export (when present) is always last.
type Phase string

const (
	PhaseIngest         Phase = "ingest"
	PhaseContext        Phase = "context"
	PhasePretranslation Phase = "pretranslation"
	PhaseTranslate      Phase = "translate"
	PhaseQA             Phase = "qa"
	PhaseEdit           Phase = "edit"
	PhaseExport         Phase = "export"
)

// allPhases is the full vocabulary in canonical order.
var allPhases = []Phase{
	PhaseIngest,
	PhaseContext,
	PhasePretranslation,
	PhaseTranslate,
	PhaseQA,
	PhaseEdit,
	PhaseExport,
}

// Known reports whether p is part of the phase vocabulary.
func Known(p Phase) bool {
	for _, k := range allPhases {
		if k == p {
			return true
		}
	}
	return false
}

// AgentPhase reports whether p is executed by an agent pool. Ingest, export
// and pretranslation are served by other collaborators.
func AgentPhase(p Phase) bool {
	switch p {
	case PhaseContext, PhaseTranslate, PhaseQA, PhaseEdit:
		return true
	}
	return false
}
