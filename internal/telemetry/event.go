package telemetry

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the intake dispatcher.
const (
	EventEmergencyAnswered       = "emergency_answered"
	EventAgeSelected             = "age_selected"
	EventSymptomGroupSelected    = "symptom_group_selected"
	EventSymptomQuestionAnswered = "symptom_question_answered"
	EventResultViewed            = "result_viewed"
)

// Event is a single named, anonymous telemetry record. It carries no session
// identifier.
type Event struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields,omitempty"`
	Time   time.Time         `json:"time"`
}

// NewEvent stamps a fresh id and the current UTC time on a named event.
func NewEvent(name string, fields map[string]string) Event {
	return Event{
		ID:     uuid.NewString(),
		Name:   name,
		Fields: fields,
		Time:   time.Now().UTC(),
	}
}

// Normalize applies defaults before the event is written.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	e.Name = strings.TrimSpace(e.Name)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	e.Time = e.Time.UTC()
}

// Validate enforces the baseline shape of an event.
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// EmergencyAnswered records an answer to a pre-screening question.
func EmergencyAnswered(questionID, answer string) Event {
	return NewEvent(EventEmergencyAnswered, map[string]string{"question_id": questionID, "answer": answer})
}

// AgeSelected records the chosen age group.
func AgeSelected(ageGroupID string) Event {
	return NewEvent(EventAgeSelected, map[string]string{"age_group_id": ageGroupID})
}

// SymptomGroupSelected records the chosen symptom group.
func SymptomGroupSelected(groupID string) Event {
	return NewEvent(EventSymptomGroupSelected, map[string]string{"group_id": groupID})
}

// SymptomQuestionAnswered records an answer inside a symptom graph.
func SymptomQuestionAnswered(slug, questionID, answer string) Event {
	return NewEvent(EventSymptomQuestionAnswered, map[string]string{
		"symptom_slug": slug,
		"question_id":  questionID,
		"answer":       answer,
	})
}

// ResultViewed records that a result was shown. source is "emergency", a
// symptom slug, or "age-override:<group>".
func ResultViewed(source, tier string) Event {
	return NewEvent(EventResultViewed, map[string]string{"source": source, "tier": tier})
}

// Recorder receives events. Implementations must not block.
type Recorder interface {
	Record(Event)
}

// RecorderFunc adapts a function into a Recorder.
type RecorderFunc func(Event)

// Record calls f.
func (f RecorderFunc) Record(event Event) { f(event) }

// Discard drops every event.
var Discard Recorder = RecorderFunc(func(Event) {})
