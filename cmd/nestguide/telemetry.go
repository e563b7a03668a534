package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/nestguide/internal/telemetry"
)

const emitterDrainTimeout = 5 * time.Second

// openEmitter wires the configured sink behind the asynchronous emitter.
func (rt *rootState) openEmitter(ctx context.Context, logger *zap.Logger) (*telemetry.Emitter, error) {
	tc := rt.cfg.Telemetry
	sink, err := telemetry.OpenSink(ctx, telemetry.SinkConfig{
		Kind: tc.Sink,
		Path: tc.Path,
		DSN:  tc.DSN,
		URL:  tc.URL,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("telemetry sink opened", zap.String("sink", tc.Sink))
	return telemetry.NewEmitter(sink,
		telemetry.WithQueueSize(tc.QueueSize),
		telemetry.WithLogger(logger),
	), nil
}

// closeEmitter drains queued events and logs the delivery counters.
func closeEmitter(emitter *telemetry.Emitter, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), emitterDrainTimeout)
	defer cancel()
	if err := emitter.Close(ctx); err != nil {
		logger.Warn("telemetry close failed", zap.Error(err))
	}
	stats := emitter.Stats()
	logger.Debug("telemetry closed",
		zap.Uint64("written", stats.Written),
		zap.Uint64("dropped", stats.Dropped),
		zap.Uint64("failed", stats.Failed),
	)
}
