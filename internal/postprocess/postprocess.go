// Package postprocess removes common LLM artifacts from raw model output
// before it reaches the JSON decoder: thinking/reasoning blocks, markdown
// code fences around the JSON document, and stray prose before or after it.
package postprocess

import (
	"regexp"
	"strings"
)

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

// fenceRe matches a markdown code fence wrapping the whole payload, with an
// optional language tag ("```json" being the frequent offender).
var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n(.*?)\n?```\\s*$")

// ExtractJSON recovers the JSON document from raw model output. Strict
// json_schema response formats make this a pass-through most of the time;
// the cleanup exists for endpoints that honor the schema but still wrap the
// document in a fence or prepend reasoning text.
func ExtractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingCut(text)
	text = strings.TrimSpace(text)

	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	// Trim prose around the outermost JSON object or array.
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	var end int
	if text[start] == '{' {
		end = strings.LastIndexByte(text, '}')
	} else {
		end = strings.LastIndexByte(text, ']')
	}
	if end <= start {
		return text
	}
	return text[start : end+1]
}

// truncatedThinkingCut drops a dangling thinking block only when no JSON
// document follows the opening tag.
func truncatedThinkingCut(text string) string {
	loc := truncatedThinkingRe.FindStringIndex(text)
	if loc == nil {
		return text
	}
	if strings.ContainsAny(text[loc[0]:], "{[") {
		return text
	}
	return text[:loc[0]]
}

// CleanLine removes artifacts from one translated line: surrounding quote
// pairs the model added on its own and leading/trailing whitespace.
func CleanLine(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
