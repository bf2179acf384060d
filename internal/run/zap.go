package run

import "go.uber.org/zap"

// ZapSink renders milestone events through a zap logger. zap loggers are
// safe for concurrent use, which satisfies the Sink contract.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink wraps an existing logger.
func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log}
}

func (s *ZapSink) Emit(ev Event) {
	fields := make([]zap.Field, 0, 8)
	if ev.Phase != "" {
		fields = append(fields, zap.String("phase", string(ev.Phase)))
	}
	if ev.Agent != "" {
		fields = append(fields, zap.String("agent", ev.Agent))
	}
	if ev.Batch != "" {
		fields = append(fields, zap.String("batch", ev.Batch))
	}
	if ev.Attempt > 0 {
		fields = append(fields, zap.Int("attempt", ev.Attempt))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	if ev.Latency > 0 {
		fields = append(fields, zap.Duration("latency", ev.Latency))
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
	}

	switch ev.Type {
	case EventRunFailed:
		s.log.Error(string(ev.Type), fields...)
	case EventSchemaRetry, EventAlignmentRetry:
		s.log.Warn(string(ev.Type), fields...)
	default:
		s.log.Info(string(ev.Type), fields...)
	}
}
