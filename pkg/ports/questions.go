package ports

import (
	"context"
	"encoding/json"

	"github.com/aretw0/arbor/pkg/domain"
)

// IdentifierChecker answers whether an identifier is free within a group.
type IdentifierChecker interface {
	// CheckIdentifierUnique reports whether identifier is unused in the group,
	// ignoring the question with id excludingID (empty for a new question).
	// Comparison is case-insensitive.
	CheckIdentifierUnique(ctx context.Context, identifier, groupID, excludingID string) (bool, error)
}

// QuestionStore is the backend the editor persists to.
//
// Every call may fail; callers treat failures as recoverable and keep their
// in-memory state.
type QuestionStore interface {
	IdentifierChecker

	// CreateQuestion persists a new question and returns its persisted id.
	CreateQuestion(ctx context.Context, groupID string, q domain.Question) (string, error)

	// UpdateQuestion applies a partial update to a persisted question.
	UpdateQuestion(ctx context.Context, id string, patch domain.QuestionPatch) error

	// DeleteQuestion removes a persisted question.
	DeleteQuestion(ctx context.Context, id string) error

	// SaveLogicTree replaces the stored logic of a group with the serialized tree.
	SaveLogicTree(ctx context.Context, groupID string, tree json.RawMessage) error
}
