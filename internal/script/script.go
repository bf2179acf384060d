// Package script models the translatable source material: immutable work
// units grouped into scenes, scene-bounded batches, and the parsing that
// turns on-disk scripts into units.
package script

import (
	"fmt"
	"regexp"
	"sort"
)

// Unit is one atomic input item, a single line of dialogue or narration.
// Units are immutable after ingest. The identifier is stable and
// human-readable: the scene slug plus a 1-based numeric suffix
// (e.g. prologue_001).
type Unit struct {
	ID      string `json:"id"`
	Scene   string `json:"scene"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

// idPattern is the required identifier shape: lowercase word(s) joined by
// underscores, ending in a numeric suffix.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(?:_[a-z0-9]+)*_[0-9]+$`)

// ValidID reports whether id matches the identifier shape.
func ValidID(id string) bool { return idPattern.MatchString(id) }

// UnitID builds the identifier for the n-th (1-based) unit of a scene.
func UnitID(scene string, n int) string {
	return fmt.Sprintf("%s_%03d", scene, n)
}

// Batch is an ordered group of units submitted as one backend call. Batches
// never cross a scene boundary, so no two batches of a run share an
// identifier. Context carries the tail of the preceding scene's source text
// for narrative continuity.
type Batch struct {
	Scene   string
	Index   int
	Units   []Unit
	Context string
}

// Label identifies the batch in events and errors.
func (b Batch) Label() string { return fmt.Sprintf("%s/%d", b.Scene, b.Index) }

// IDs returns the batch's identifier set in unit order.
func (b Batch) IDs() []string {
	ids := make([]string, len(b.Units))
	for i, u := range b.Units {
		ids[i] = u.ID
	}
	return ids
}

// DiffIDs computes the set difference between an input identifier list and
// the identifiers present in got. Extra identifiers were returned but never
// asked for; missing ones were asked for but absent. Both lists come back
// sorted for stable error messages.
func DiffIDs(want []string, got map[string]struct{}) (extra, missing []string) {
	wanted := make(map[string]struct{}, len(want))
	for _, id := range want {
		wanted[id] = struct{}{}
		if _, ok := got[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range got {
		if _, ok := wanted[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	sort.Strings(missing)
	return extra, missing
}
