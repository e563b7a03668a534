package intake

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongStage marks an operation called outside the stage that accepts it.
	ErrWrongStage = errors.New("intake: operation not allowed in current stage")
	// ErrUnknownAgeGroup is returned for an age group id missing from the catalog.
	ErrUnknownAgeGroup = errors.New("intake: unknown age group")
	// ErrUnknownSymptomGroup is returned for a symptom group id missing from the catalog.
	ErrUnknownSymptomGroup = errors.New("intake: unknown symptom group")
	// ErrUnknownSymptom is returned for a slug that is not part of the selected group.
	ErrUnknownSymptom = errors.New("intake: unknown symptom")
	// ErrInvalidAnswer is returned for answers other than yes or no.
	ErrInvalidAnswer = errors.New("intake: answer must be yes or no")
	// ErrUnknownRegion is returned by New for a region id missing from the catalog.
	ErrUnknownRegion = errors.New("intake: unknown region")
)

// StageError reports a precondition violation: Op was called while the
// dispatcher was in Stage.
type StageError struct {
	Op    string
	Stage Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("intake: %s not allowed in stage %s", e.Op, e.Stage)
}

// Unwrap lets errors.Is match ErrWrongStage.
func (e *StageError) Unwrap() error { return ErrWrongStage }
