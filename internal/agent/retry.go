// Package agent wraps backend callers into typed per-phase runtimes and
// dispatches scene batches against them through a bounded worker pool.
//
// Retry layering: the Runtime owns schema retries (malformed or
// non-conforming output, timeouts), the Pool owns alignment retries
// (identifier-set mismatches). The two bounds are independent and compose
// multiplicatively; MaxTotalAttempts makes the worst case visible instead
// of leaving it an implicit product.
package agent

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds both retry layers for one phase.
type RetryPolicy struct {
	// SchemaRetries is the number of re-submissions the Runtime may make
	// after a schema-validation failure or timeout (0 = single attempt).
	SchemaRetries int `mapstructure:"schema_retries"`
	// AlignmentRetries is the number of re-submissions the Pool may make
	// after an identifier-alignment mismatch (0 = single attempt).
	AlignmentRetries int `mapstructure:"alignment_retries"`
	// InitialBackoff/MaxBackoff shape the exponential wait between
	// attempts at either layer.
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	// FailFast cancels sibling in-flight batches as soon as one batch
	// fails terminally. The default is best-effort drain: siblings finish,
	// then the phase fails once all outcomes are known.
	FailFast bool `mapstructure:"fail_fast"`
}

// Normalize fills defaults for unset fields.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.SchemaRetries < 0 {
		p.SchemaRetries = 0
	}
	if p.AlignmentRetries < 0 {
		p.AlignmentRetries = 0
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 15 * time.Second
	}
	return p
}

// MaxTotalAttempts is the worst-case number of backend calls one batch can
// cost: every alignment attempt may itself burn the full schema-retry
// budget.
func (p RetryPolicy) MaxTotalAttempts() int {
	return (p.AlignmentRetries + 1) * (p.SchemaRetries + 1)
}

// newBackoff builds the shared wait schedule for one attempt sequence.
func (p RetryPolicy) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0 // attempts are bounded by count, not wall clock
	return b
}

// sleep waits for the next backoff interval or until ctx is done.
func sleep(ctx context.Context, b backoff.BackOff) error {
	d := b.NextBackOff()
	if d == backoff.Stop || d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
