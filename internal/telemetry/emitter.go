package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// EmitterOption customizes Emitter construction.
type EmitterOption func(*Emitter)

// WithQueueSize overrides the bounded queue capacity.
func WithQueueSize(size int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.queueSize = size
		}
	}
}

// WithWriteTimeout bounds each sink write.
func WithWriteTimeout(timeout time.Duration) EmitterOption {
	return func(e *Emitter) {
		if timeout > 0 {
			e.writeTimeout = timeout
		}
	}
}

// WithLogger injects the logger used for drop and sink failure messages.
func WithLogger(logger *zap.Logger) EmitterOption {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Emitter is a Recorder that queues events on a bounded channel and writes
// them to a Sink from a background goroutine. Record never blocks: on
// overflow one event is dropped, keeping result_viewed over everything else.
type Emitter struct {
	sink         Sink
	logger       *zap.Logger
	queueSize    int
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
	ch     chan Event
	done   chan struct{}

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewEmitter starts the background writer for sink.
func NewEmitter(sink Sink, opts ...EmitterOption) *Emitter {
	if sink == nil {
		sink = NopSink{}
	}
	e := &Emitter{
		sink:         sink,
		logger:       zap.NewNop(),
		queueSize:    defaultQueueSize,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.ch = make(chan Event, e.queueSize)
	go e.run()
	return e
}

// Record enqueues event. Events recorded after Close are dropped.
func (e *Emitter) Record(event Event) {
	event.Normalize()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.drop(event, "emitter closed")
		return
	}
	select {
	case e.ch <- event:
		return
	default:
	}
	var oldest Event
	select {
	case oldest = <-e.ch:
	default:
		// The writer drained the queue in the meantime.
		e.ch <- event
		return
	}
	if shouldDropOldest(oldest, event) {
		e.drop(oldest, "queue overflow")
		e.ch <- event
		return
	}
	e.ch <- oldest
	e.drop(event, "queue overflow:incoming")
}

func (e *Emitter) drop(event Event, reason string) {
	e.dropped.Add(1)
	e.logger.Debug("telemetry event dropped", zap.String("event", event.Name), zap.String("reason", reason))
}

func (e *Emitter) run() {
	defer close(e.done)
	for event := range e.ch {
		ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
		err := e.sink.Write(ctx, event)
		cancel()
		if err != nil {
			e.failed.Add(1)
			e.logger.Warn("telemetry sink write failed", zap.String("event", event.Name), zap.Error(err))
			continue
		}
		e.written.Add(1)
	}
}

// Close stops accepting events, drains the queue and closes the sink. If ctx
// ends first the remaining events are abandoned and ctx.Err is returned.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
	e.mu.Unlock()
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.sink.Close()
}

// Stats reports delivery counters.
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Stats returns a snapshot of the delivery counters.
func (e *Emitter) Stats() Stats {
	return Stats{
		Written: e.written.Load(),
		Dropped: e.dropped.Load(),
		Failed:  e.failed.Load(),
	}
}

func shouldDropOldest(oldest, incoming Event) bool {
	oldestCritical := isCriticalEvent(oldest.Name)
	incomingCritical := isCriticalEvent(incoming.Name)
	switch {
	case oldestCritical && !incomingCritical:
		return false
	case !oldestCritical && incomingCritical:
		return true
	}
	oldestPreferred := isPreferredDrop(oldest.Name)
	incomingPreferred := isPreferredDrop(incoming.Name)
	if !oldestPreferred && incomingPreferred {
		return false
	}
	return true
}

func isCriticalEvent(name string) bool {
	return name == EventResultViewed
}

func isPreferredDrop(name string) bool {
	return name == EventSymptomQuestionAnswered
}
