package engine

import (
	"errors"
	"fmt"

	"github.com/kingrea/nestguide/internal/triage"
)

// ErrFinished is returned when answering after a terminal edge was reached.
var ErrFinished = errors.New("engine: traversal already finished")

// Step reports what a single answer did.
type Step struct {
	QuestionID string        `json:"question_id"`
	Answer     triage.Answer `json:"answer"`
	Next       string        `json:"next,omitempty"`
	Result     triage.Result `json:"result"`
	Done       bool          `json:"done"`
}

// Engine holds the traversal state for one symptom. It is not safe for
// concurrent use; each session owns its own Engine.
type Engine struct {
	symptom triage.Symptom
	index   map[string]triage.Question
	current string
	path    []string
	result  triage.Result
	done    bool
}

// New validates symptom and positions a fresh engine at its entry question.
func New(symptom triage.Symptom) (*Engine, error) {
	if err := symptom.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	symptom = symptom.Clone()
	index := make(map[string]triage.Question, len(symptom.Questions))
	for _, q := range symptom.Questions {
		index[q.ID] = q
	}
	return &Engine{
		symptom: symptom,
		index:   index,
		current: symptom.Entry,
	}, nil
}

// Symptom returns a copy of the graph being walked.
func (e *Engine) Symptom() triage.Symptom { return e.symptom.Clone() }

// Slug identifies the symptom being walked.
func (e *Engine) Slug() string { return e.symptom.Slug }

// Current returns the question awaiting an answer; false once finished.
func (e *Engine) Current() (triage.Question, bool) {
	if e.done {
		return triage.Question{}, false
	}
	q, ok := e.index[e.current]
	return q, ok
}

// Answer resolves the current question's edge for answer.
func (e *Engine) Answer(answer triage.Answer) (Step, error) {
	if e.done {
		return Step{}, ErrFinished
	}
	if !answer.Valid() {
		return Step{}, fmt.Errorf("engine: invalid answer %q", answer)
	}
	q, ok := e.index[e.current]
	if !ok {
		return Step{}, fmt.Errorf("engine: question %s not found in %s", e.current, e.symptom.Slug)
	}
	edge := q.Edge(answer)
	if edge.Kind() == triage.EdgeUnset {
		return Step{}, fmt.Errorf("engine: question %s has no %s edge", q.ID, answer)
	}
	step := Step{QuestionID: q.ID, Answer: answer}
	e.path = append(e.path, q.ID)
	switch edge.Kind() {
	case triage.EdgeReference:
		e.current = edge.Target()
		step.Next = e.current
	case triage.EdgeTerminal:
		e.result = edge.Result()
		e.done = true
		e.current = ""
		step.Result = edge.Result()
		step.Done = true
	}
	return step, nil
}

// Reset returns to the entry question and clears any result.
func (e *Engine) Reset() {
	e.current = e.symptom.Entry
	e.path = nil
	e.result = triage.Result{}
	e.done = false
}

// Done reports whether a terminal edge was reached.
func (e *Engine) Done() bool { return e.done }

// Result returns the terminal result once finished.
func (e *Engine) Result() (triage.Result, bool) {
	if !e.done {
		return triage.Result{}, false
	}
	return e.result.Clone(), true
}

// Path lists the question ids answered so far, in order.
func (e *Engine) Path() []string {
	return append([]string(nil), e.path...)
}
