package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes records as structured log entries.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink writing to logger
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// EmitPage logs a page registration
func (s *LogSink) EmitPage(_ context.Context, ev PageRegistered) error {
	fields := []zap.Field{
		zap.String("id", ev.ID),
		zap.Uint64("index", ev.Index),
		zap.Stringer("type", ev.Type),
		zap.Stringer("page_hash", ev.PageHash),
		zap.Stringer("fact", ev.Fact),
		zap.Stringer("product", ev.Product),
		zap.Uint64("size", ev.Size),
	}
	if ev.StartAddress != nil {
		fields = append(fields, zap.Stringer("start_address", ev.StartAddress))
	}
	s.logger.Info("memory page registered", fields...)
	return nil
}

// EmitStatement logs an aggregation
func (s *LogSink) EmitStatement(_ context.Context, ev StatementRegistered) error {
	s.logger.Info("statement registered",
		zap.String("id", ev.ID),
		zap.Stringer("aggregate_fact", ev.AggregateFact),
		zap.Int("task_count", ev.TaskCount),
		zap.Uint64("verifier_id", ev.VerifierID),
	)
	return nil
}
