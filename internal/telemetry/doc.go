// Package telemetry carries anonymous interview events to a pluggable sink.
// Callers record through the non-blocking Emitter; sinks may be slow or fail
// without affecting the interview.
package telemetry
