package run

import "time"

// EventType enumerates structured milestone events.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventRunCompleted   EventType = "run_completed"
	EventRunFailed      EventType = "run_failed"
	EventPhaseStarted   EventType = "phase_started"
	EventPhaseCompleted EventType = "phase_completed"
	EventPoolReady      EventType = "pool_ready"
	EventBatchCompleted EventType = "batch_completed"
	EventSchemaRetry    EventType = "schema_retry"
	EventAlignmentRetry EventType = "alignment_retry"
	EventProbeResult    EventType = "probe_result"
)

// Event is one structured milestone. The core emits these to an external
// sink and never formats or colors output itself.
type Event struct {
	Type    EventType
	Phase   Phase
	Agent   string
	Batch   string
	Attempt int
	Detail  string
	Latency time.Duration
	Err     error
}

// Sink receives milestone events. Implementations must be safe for
// concurrent use; batch workers emit from multiple goroutines.
type Sink interface {
	Emit(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}
