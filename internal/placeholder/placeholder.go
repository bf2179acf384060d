// Package placeholder protects game-script markup during LLM phases by
// replacing it with numbered markers ([PH0], [PH1], …) that models are
// instructed to preserve. Restore substitutes the markers back afterwards.
//
// Protected constructs: engine variable tags ({player}, %var%), ruby/HTML
// style tags, and escape codes such as \n or \N that scripts use for
// forced line breaks.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// engine variable tags: {name}, {item.count}
	reBraceTag = regexp.MustCompile(`\{[^{}]+\}`)

	// percent variables: %hero%, %flag_12%
	rePercentVar = regexp.MustCompile(`%[A-Za-z_][A-Za-z0-9_]*%`)

	// HTML/ruby tags: <b>, </ruby>, <color=#ff0000>
	reTag = regexp.MustCompile(`<[^<>]+>`)

	// escape codes for forced breaks and waits: \n, \N, \w[30]
	reEscape = regexp.MustCompile(`\\[a-zA-Z](?:\[[0-9]+\])?`)

	// placeholder reference in model output
	rePlaceholder = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protect replaces markup with numbered placeholders in the order the
// constructs appear. It returns the modified text and the captured
// originals so Restore can put them back.
func Protect(text string) (string, []string) {
	var markers []string
	replace := func(match string) string {
		id := fmt.Sprintf("[PH%d]", len(markers))
		markers = append(markers, match)
		return id
	}

	// Order matters: tags may contain escape-like backslashes, so the
	// structured constructs go first and bare escapes last.
	text = reBraceTag.ReplaceAllStringFunc(text, replace)
	text = rePercentVar.ReplaceAllStringFunc(text, replace)
	text = reTag.ReplaceAllStringFunc(text, replace)
	text = reEscape.ReplaceAllStringFunc(text, replace)

	return text, markers
}

// Restore substitutes [PHn] markers back with the originals captured by
// Protect. Unknown indices leave the marker as-is.
func Restore(text string, markers []string) string {
	return rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		sub := rePlaceholder.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(markers) {
			return match
		}
		return markers[idx]
	})
}

// Missing returns the indices of markers created by Protect that no longer
// appear in the model output. A non-empty result means the model dropped
// markup it was told to preserve.
func Missing(text string, markers []string) []int {
	var missing []int
	for i := range markers {
		if !strings.Contains(text, fmt.Sprintf("[PH%d]", i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// InstructionHint returns the prompt sentence that tells the model to leave
// placeholders intact.
func InstructionHint() string {
	return "Preserve all [PHn] markers exactly as they appear — do not translate, move, or remove them."
}
