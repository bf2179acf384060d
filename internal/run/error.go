package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed error classification surfaced to the CLI layer. Every
// terminal run error carries exactly one Kind; the CLI maps it to a process
// exit code.
type Kind string

const (
	// KindConfiguration: invalid endpoint/model/phase configuration.
	// Always detected before any network call.
	KindConfiguration Kind = "configuration"
	// KindMissingDependency: ingest resolved no work units.
	KindMissingDependency Kind = "missing_dependency"
	// KindOutputValidation: an agent exhausted its schema-retry bound.
	KindOutputValidation Kind = "output_validation_exhausted"
	// KindAlignment: a batch exhausted its alignment-retry bound, or the
	// edit gate rejected a proposed phase output.
	KindAlignment Kind = "alignment_exhausted"
	// KindProbe: the live preflight probe failed (incompatible upstream or
	// unreachable endpoint).
	KindProbe Kind = "probe_failure"
	// KindPersistence: the phase-output store write failed.
	KindPersistence Kind = "persistence_failure"
	// KindCanceled: operator cancellation.
	KindCanceled Kind = "canceled"
	// KindInternal: fallback for unclassified failures.
	KindInternal Kind = "internal"
)

// Error is the structured run error. Extra/Missing carry identifier mismatch
// detail for alignment failures so the CLI can render both lists.
type Error struct {
	Kind    Kind
	Phase   Phase
	Agent   string
	Msg     string
	Extra   []string
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Phase != "" {
		sb.WriteString(": phase ")
		sb.WriteString(string(e.Phase))
	}
	if e.Agent != "" {
		sb.WriteString(", agent ")
		sb.WriteString(e.Agent)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&sb, " extra=%v", e.Extra)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&sb, " missing=%v", e.Missing)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, phase Phase, format string, args ...any) *Error {
	return &Error{Kind: kind, Phase: phase, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without losing it from the chain.
func Wrap(kind Kind, phase Phase, err error, msg string) *Error {
	return &Error{Kind: kind, Phase: phase, Msg: msg, Err: err}
}

// KindOf extracts the classification from an error chain. Context
// cancellation is recognized even when no *Error wraps it.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindInternal
}

// ExitCode maps a classification to a process exit code for the CLI layer.
// 0 is success; 1 is reserved for unclassified failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindConfiguration:
		return 2
	case KindMissingDependency:
		return 3
	case KindOutputValidation:
		return 4
	case KindAlignment:
		return 5
	case KindProbe:
		return 6
	case KindPersistence:
		return 7
	case KindCanceled:
		return 130
	default:
		return 1
	}
}
