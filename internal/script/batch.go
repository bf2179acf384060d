package script

import "strings"

const (
	// DefaultBatchSize caps the number of units per batch when the
	// configuration does not set one.
	DefaultBatchSize = 24

	// DefaultContextWords is the length of the sliding-window context
	// snippet carried from the preceding scene.
	DefaultContextWords = 25
)

// MakeBatches groups units into scene-bounded batches of at most maxUnits.
// Splits happen on the scene boundary first, then on the size cap within a
// scene. Each batch carries a sliding-window context snippet: the last few
// words of the text preceding it, so LLM phases can keep continuity across
// batch boundaries.
func MakeBatches(units []Unit, maxUnits int) []Batch {
	if maxUnits <= 0 {
		maxUnits = DefaultBatchSize
	}

	var batches []Batch
	var cur Batch
	var tail []string // running word window of already-batched source text

	flush := func() {
		if len(cur.Units) == 0 {
			return
		}
		batches = append(batches, cur)
		for _, u := range cur.Units {
			tail = append(tail, strings.Fields(u.Text)...)
		}
		if len(tail) > DefaultContextWords {
			tail = tail[len(tail)-DefaultContextWords:]
		}
		cur = Batch{}
	}

	index := make(map[string]int) // per-scene batch counter
	for _, u := range units {
		if u.Scene != cur.Scene || len(cur.Units) >= maxUnits {
			flush()
			cur = Batch{
				Scene:   u.Scene,
				Index:   index[u.Scene],
				Context: strings.Join(tail, " "),
			}
			index[u.Scene]++
		}
		cur.Units = append(cur.Units, u)
	}
	flush()
	return batches
}
