package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Sink kinds accepted by OpenSink.
const (
	SinkNone = "none"
	SinkLog  = "log"
	SinkFile = "file"
	SinkSQL  = "sql"
	SinkHTTP = "http"
)

// SinkConfig selects and parameterizes a sink.
type SinkConfig struct {
	Kind string
	Path string
	DSN  string
	URL  string
}

// OpenSink builds the sink named by cfg.Kind. An empty kind means "log".
func OpenSink(ctx context.Context, cfg SinkConfig, logger *zap.Logger) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case SinkNone:
		return NopSink{}, nil
	case "", SinkLog:
		return NewLogSink(logger), nil
	case SinkFile:
		return NewFileSink(cfg.Path)
	case SinkSQL:
		return OpenSQLSink(ctx, cfg.DSN)
	case SinkHTTP:
		return NewHTTPSink(cfg.URL, nil)
	default:
		return nil, fmt.Errorf("telemetry: unknown sink %q", cfg.Kind)
	}
}
