package backend

import (
	"fmt"
	"strings"
	"time"
)

// Effort is the canonical reasoning-effort tuning value.
type Effort string

const (
	EffortNone   Effort = ""
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// ParseEffort normalizes a reasoning-effort value. The configuration layer
// may hand it over either as a typed Effort or as a raw string (schema
// validators tend to coerce enums to strings); both forms are accepted
// here, once, so call sites never need to branch on the representation.
func ParseEffort(v any) (Effort, error) {
	switch t := v.(type) {
	case nil:
		return EffortNone, nil
	case Effort:
		return normalizeEffort(string(t))
	case string:
		return normalizeEffort(t)
	default:
		return EffortNone, fmt.Errorf("reasoning effort: unsupported type %T", v)
	}
}

func normalizeEffort(s string) (Effort, error) {
	switch Effort(strings.ToLower(strings.TrimSpace(s))) {
	case EffortNone:
		return EffortNone, nil
	case EffortLow:
		return EffortLow, nil
	case EffortMedium:
		return EffortMedium, nil
	case EffortHigh:
		return EffortHigh, nil
	default:
		return EffortNone, fmt.Errorf("reasoning effort: unknown value %q", s)
	}
}

// Settings are the per-agent tuning parameters as configured.
// ReasoningEffort is deliberately untyped; see ParseEffort.
type Settings struct {
	ReasoningEffort  any           `mapstructure:"reasoning_effort"`
	Temperature      *float64      `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	FrequencyPenalty float64       `mapstructure:"frequency_penalty"`
	PresencePenalty  float64       `mapstructure:"presence_penalty"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// ResolvedSettings is the canonical internal form produced by Construct.
// Penalty parameters stay at their zero default unless configured; the
// callers include them in the outgoing payload only when non-default, since
// sending explicit penalties narrows an aggregator's eligible-upstream set.
type ResolvedSettings struct {
	Effort           Effort
	Temperature      *float64
	MaxTokens        int
	FrequencyPenalty float64
	PresencePenalty  float64
	Timeout          time.Duration
}

const (
	defaultMaxTokens   = 4096
	defaultCallTimeout = 120 * time.Second
)

// resolveSettings normalizes Settings into ResolvedSettings and fills in
// defaults. The endpoint timeout applies when the agent sets none.
func resolveSettings(s Settings, epTimeout time.Duration) (ResolvedSettings, error) {
	effort, err := ParseEffort(s.ReasoningEffort)
	if err != nil {
		return ResolvedSettings{}, err
	}

	rs := ResolvedSettings{
		Effort:           effort,
		Temperature:      s.Temperature,
		MaxTokens:        s.MaxTokens,
		FrequencyPenalty: s.FrequencyPenalty,
		PresencePenalty:  s.PresencePenalty,
		Timeout:          s.Timeout,
	}
	if rs.MaxTokens <= 0 {
		rs.MaxTokens = defaultMaxTokens
	}
	if rs.Timeout <= 0 {
		rs.Timeout = epTimeout
	}
	if rs.Timeout <= 0 {
		rs.Timeout = defaultCallTimeout
	}
	return rs, nil
}
