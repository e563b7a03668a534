package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sink persists or forwards events. Write may block; the Emitter keeps it off
// the caller's path.
type Sink interface {
	Write(ctx context.Context, event Event) error
	Close() error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Write(context.Context, Event) error { return nil }
func (NopSink) Close() error                       { return nil }

// LogSink writes each event as a structured log entry.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink logs events through logger; a nil logger discards them.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("telemetry")}
}

func (s *LogSink) Write(_ context.Context, event Event) error {
	fields := make([]zap.Field, 0, len(event.Fields)+2)
	fields = append(fields, zap.String("event_id", event.ID), zap.Time("time", event.Time))
	keys := make([]string, 0, len(event.Fields))
	for key := range event.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fields = append(fields, zap.String(key, event.Fields[key]))
	}
	s.logger.Info(event.Name, fields...)
	return nil
}

func (s *LogSink) Close() error {
	_ = s.logger.Sync()
	return nil
}

// MultiSink fans every event out to several sinks concurrently.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, event Event) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, sink := range m {
		sink := sink
		group.Go(func() error {
			return sink.Write(gctx, event)
		})
	}
	return group.Wait()
}

func (m MultiSink) Close() error {
	var firstErr error
	for i, sink := range m {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telemetry: close sink %d: %w", i, err)
		}
	}
	return firstErr
}
