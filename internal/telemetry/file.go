package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends events as JSON lines to a file.
type FileSink struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewFileSink creates the parent directory and opens path for appending.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("telemetry: file sink path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: create %s: %w", filepath.Dir(path), err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &FileSink{path: path, file: file}, nil
}

// Path returns the file backing this sink.
func (s *FileSink) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *FileSink) Write(_ context.Context, event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("telemetry: encode %s: %w", event.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("telemetry: file sink %s is closed", s.path)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("telemetry: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Tail returns up to maxEvents of the most recent events. Lines that fail to
// decode are skipped.
func (s *FileSink) Tail(maxEvents int) []Event {
	if s == nil || maxEvents <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return tailFile(s.path, maxEvents)
}

// TailFile reads the most recent events from a JSON lines file written by a
// FileSink.
func TailFile(path string, maxEvents int) []Event {
	if maxEvents <= 0 {
		return nil
	}
	return tailFile(path, maxEvents)
}

func tailFile(path string, maxEvents int) []Event {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if len(events) > maxEvents {
		events = events[len(events)-maxEvents:]
	}
	return events
}
