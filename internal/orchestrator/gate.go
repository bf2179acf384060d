package orchestrator

import (
	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/script"
)

// checkEditGate validates a proposed edit output against the ingested
// units before anything is committed. The output must carry exactly one
// result per unit, no more, no fewer. On violation the caller discards
// the whole proposal; no subset is ever kept.
func checkEditGate(units []script.Unit, proposed run.PhaseOutput) error {
	want := make([]string, len(units))
	for i, u := range units {
		want[i] = u.ID
	}
	got := make(map[string]struct{}, len(proposed))
	for id := range proposed {
		got[id] = struct{}{}
	}

	extra, missing := script.DiffIDs(want, got)
	if len(extra) == 0 && len(missing) == 0 && len(proposed) == len(units) {
		return nil
	}
	return &run.Error{
		Kind:    run.KindAlignment,
		Phase:   run.PhaseEdit,
		Msg:     "edited output rejected before commit",
		Extra:   extra,
		Missing: missing,
	}
}
