package triage

import (
	"fmt"
	"strings"
)

// Answer is a caregiver's reply to a yes/no question.
type Answer string

const (
	// AnswerYes follows a question's yes edge.
	AnswerYes Answer = "yes"
	// AnswerNo follows a question's no edge.
	AnswerNo Answer = "no"
)

// ParseAnswer accepts yes/no in the usual spellings.
func ParseAnswer(value string) (Answer, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "1":
		return AnswerYes, nil
	case "no", "n", "false", "0":
		return AnswerNo, nil
	default:
		return "", fmt.Errorf("answer must be yes or no, got %q", value)
	}
}

// Valid reports whether a is yes or no.
func (a Answer) Valid() bool {
	return a == AnswerYes || a == AnswerNo
}

// UnmarshalText lets JSON request bodies carry answers directly.
func (a *Answer) UnmarshalText(text []byte) error {
	parsed, err := ParseAnswer(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
