package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/script"
)

// export writes one output script per scene, using the most downstream
// text available for each unit. Scene order and unit order match ingest.
func (o *Orchestrator) export(ctx context.Context) error {
	units := o.rc.Units()
	if len(units) == 0 {
		return run.Errorf(run.KindMissingDependency, run.PhaseExport, "no work units; was ingest configured?")
	}
	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		return run.Wrap(run.KindPersistence, run.PhaseExport, err, "create output directory")
	}

	for _, sc := range scenesInOrder(units) {
		if ctx.Err() != nil {
			return run.Wrap(run.KindCanceled, run.PhaseExport, ctx.Err(), "export abandoned")
		}
		if err := o.exportScene(sc.name, sc.units); err != nil {
			return err
		}
	}
	return nil
}

type scene struct {
	name  string
	units []script.Unit
}

// scenesInOrder groups units by scene, preserving first-appearance order.
func scenesInOrder(units []script.Unit) []scene {
	var order []scene
	index := make(map[string]int)
	for _, u := range units {
		i, ok := index[u.Scene]
		if !ok {
			i = len(order)
			index[u.Scene] = i
			order = append(order, scene{name: u.Scene})
		}
		order[i].units = append(order[i].units, u)
	}
	return order
}

func (o *Orchestrator) exportScene(name string, units []script.Unit) error {
	var sb strings.Builder
	for _, u := range units {
		if u.Speaker != "" {
			fmt.Fprintf(&sb, "%s: %s\n", u.Speaker, o.rc.TextFor(u))
		} else {
			fmt.Fprintf(&sb, "%s\n", o.rc.TextFor(u))
		}
	}
	path := filepath.Join(o.cfg.OutputDir, name+".txt")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return run.Wrap(run.KindPersistence, run.PhaseExport, err, fmt.Sprintf("write %s", path))
	}
	return nil
}
