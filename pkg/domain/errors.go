package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrGroupNotFound is returned when a group cannot be loaded.
	ErrGroupNotFound = errors.New("group not found")
	// ErrQuestionNotFound is returned when a question cannot be resolved.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNodeNotFound is returned when a mutation addresses a node that is not in the tree.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidPath is returned when a path does not address a list of the tree.
	ErrInvalidPath = errors.New("invalid path")
	// ErrMaxDepthExceeded is returned when a mutation would nest deeper than MaxDepth.
	ErrMaxDepthExceeded = errors.New("maximum nesting depth exceeded")
	// ErrDuplicateIdentifier is returned when an identifier is already used in the group.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	// ErrInvalidQuestion is returned when a question fails field validation.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrDanglingReference marks a tree node whose question cannot be resolved.
	ErrDanglingReference = errors.New("dangling question reference")
	// ErrPersistence wraps backend failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrCheckSuperseded is returned when a newer identifier check replaced the current one.
	ErrCheckSuperseded = errors.New("identifier check superseded")
	// ErrAlreadyCommitted is returned when a question receives a second persisted id.
	ErrAlreadyCommitted = errors.New("question already committed")
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// IdentifierError reports an identifier that collides within its group.
type IdentifierError struct {
	Identifier string
	GroupID    string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("identifier %q already exists in group %q", e.Identifier, e.GroupID)
}

func (e *IdentifierError) Unwrap() error { return ErrDuplicateIdentifier }

// PersistenceError wraps a failed backend call with the operation and the
// question it concerned.
type PersistenceError struct {
	Op          string
	QuestionKey string
	Err         error
}

func (e *PersistenceError) Error() string {
	if e.QuestionKey == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.QuestionKey, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// ValidationError lists the required questions left unanswered.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "required questions unanswered: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AnswerTypeError reports an answer whose shape does not fit its question type.
type AnswerTypeError struct {
	Identifier string
	Type       QuestionType
	Err        error
}

func (e *AnswerTypeError) Error() string {
	return fmt.Sprintf("answer for %s (%s): %v", e.Identifier, e.Type, e.Err)
}

func (e *AnswerTypeError) Unwrap() error { return e.Err }
