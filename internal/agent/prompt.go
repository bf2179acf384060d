package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valpere/scenetran/internal/backend"
	"github.com/valpere/scenetran/internal/placeholder"
	"github.com/valpere/scenetran/internal/postprocess"
	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/script"
)

// Input is the typed request for one batch of one phase.
type Input struct {
	Phase      run.Phase
	Batch      script.Batch
	SourceLang string
	TargetLang string
	// Drafts carries prior-phase text per identifier (machine
	// pretranslation for translate, the translation for qa/edit).
	Drafts map[string]string
	// Review carries per-identifier notes from an upstream annotation phase
	// (scene notes for translate, QA findings for edit).
	Review map[string]string
	// Feedback accumulates retry notes (schema errors, alignment
	// mismatches) appended to the resubmitted prompt.
	Feedback []string
}

// Output is the validated, decoded result of one batch call.
type Output struct {
	Lines map[string]run.Result
	Model string
}

var systemPrompts = map[run.Phase]string{
	run.PhaseContext: "You are a story analyst. For every line of the scene, write a short note " +
		"capturing who speaks, the tone, and anything a translator must know (honorifics, " +
		"wordplay, callbacks). Do not translate.",
	run.PhaseTranslate: "You are a professional game-script translator. Translate every line from " +
		"%s to %s. Keep the register of each speaker consistent and respect the scene notes " +
		"and draft when given.",
	run.PhaseQA: "You are a translation reviewer. For every line, compare the source and the " +
		"translation and report issues: mistranslation, dropped content, register drift, " +
		"broken markup. Write \"ok\" when a line is fine. Do not rewrite the lines.",
	run.PhaseEdit: "You are a line editor. Produce the final version of every translated line, " +
		"applying the reviewer notes. Return every line, including the ones you leave " +
		"unchanged.",
}

// promptLine is the per-unit entry of the user payload.
type promptLine struct {
	ID      string `json:"id"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	Draft   string `json:"draft,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type promptPayload struct {
	Scene   string       `json:"scene"`
	Context string       `json:"context,omitempty"`
	Lines   []promptLine `json:"lines"`
}

// encodeRequest renders the batch into a backend request. Markup in the
// source text is placeholder-protected; the returned marker table keys the
// restoration after decode.
func encodeRequest(in Input) (backend.Request, map[string][]string, error) {
	markers := make(map[string][]string, len(in.Batch.Units))
	payload := promptPayload{Scene: in.Batch.Scene, Context: in.Batch.Context}
	for _, u := range in.Batch.Units {
		protected, m := placeholder.Protect(u.Text)
		markers[u.ID] = m
		line := promptLine{ID: u.ID, Speaker: u.Speaker, Text: protected}
		if in.Drafts != nil {
			line.Draft = in.Drafts[u.ID]
		}
		if in.Review != nil {
			line.Notes = in.Review[u.ID]
		}
		payload.Lines = append(payload.Lines, line)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return backend.Request{}, nil, fmt.Errorf("encode batch %s: %w", in.Batch.Label(), err)
	}

	var sys strings.Builder
	tmpl, ok := systemPrompts[in.Phase]
	if !ok {
		return backend.Request{}, nil, fmt.Errorf("phase %s has no agent prompt", in.Phase)
	}
	if in.Phase == run.PhaseTranslate {
		tmpl = fmt.Sprintf(tmpl, langOrDetected(in.SourceLang), in.TargetLang)
	}
	sys.WriteString(tmpl)
	sys.WriteString("\nAnswer with a JSON object {\"lines\": [...]} containing exactly one entry per input id. ")
	sys.WriteString(placeholder.InstructionHint())
	for _, note := range in.Feedback {
		sys.WriteString("\nNOTE: ")
		sys.WriteString(note)
	}

	return backend.Request{
		Messages: []backend.Message{
			{Role: "system", Content: sys.String()},
			{Role: "user", Content: string(body)},
		},
		SchemaName: string(in.Phase) + "_lines",
		Schema:     phaseSchema(in.Phase),
	}, markers, nil
}

func langOrDetected(lang string) string {
	if lang == "" || lang == "auto" {
		return "the detected language"
	}
	return lang
}

// textPhase reports whether the phase produces line text (as opposed to
// notes only).
func textPhase(p run.Phase) bool {
	return p == run.PhaseTranslate || p == run.PhaseEdit
}

// phaseSchema returns the strict response schema for the phase. Text
// phases require id+text, annotation phases require id+notes.
func phaseSchema(p run.Phase) json.RawMessage {
	required := `["id","text"]`
	if !textPhase(p) {
		required = `["id","notes"]`
	}
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "lines": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "text": {"type": "string"},
          "notes": {"type": "string"}
        },
        "required": ` + required + `,
        "additionalProperties": false
      }
    }
  },
  "required": ["lines"],
  "additionalProperties": false
}`)
}

// decodeOutput parses and schema-validates raw model output. Alignment
// (identifier-set equality with the input) is deliberately not checked
// here; that is the pool's concern.
func decodeOutput(in Input, markers map[string][]string, resp *backend.Response) (Output, error) {
	var doc struct {
		Lines []struct {
			ID    string `json:"id"`
			Text  string `json:"text"`
			Notes string `json:"notes"`
		} `json:"lines"`
	}
	cleaned := postprocess.ExtractJSON(resp.Content)
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return Output{}, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if len(doc.Lines) == 0 {
		return Output{}, fmt.Errorf("response contains no lines")
	}

	out := Output{Lines: make(map[string]run.Result, len(doc.Lines)), Model: resp.Model}
	for _, l := range doc.Lines {
		if l.ID == "" {
			return Output{}, fmt.Errorf("response line with empty id")
		}
		if _, dup := out.Lines[l.ID]; dup {
			return Output{}, fmt.Errorf("duplicate id %s in response", l.ID)
		}
		text := postprocess.CleanLine(l.Text)
		if textPhase(in.Phase) {
			if text == "" {
				return Output{}, fmt.Errorf("empty text for id %s", l.ID)
			}
			if m, known := markers[l.ID]; known {
				if missing := placeholder.Missing(text, m); len(missing) > 0 {
					return Output{}, fmt.Errorf("id %s dropped markup markers %v", l.ID, missing)
				}
				text = placeholder.Restore(text, m)
			}
		} else if strings.TrimSpace(l.Notes) == "" {
			return Output{}, fmt.Errorf("empty notes for id %s", l.ID)
		}
		out.Lines[l.ID] = run.Result{Text: text, Notes: strings.TrimSpace(l.Notes), Model: resp.Model}
	}
	return out, nil
}
