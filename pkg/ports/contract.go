package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(sessionID, "household", "health")
		state.Status = domain.StatusActive
		state.Page = 2
		state.Answers["household.has_pet"] = "yes"
		state.Answers["household.pet_name"] = []any{"Rex", "Tom"}

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.Groups, loaded.Groups)
		assert.Equal(t, 2, loaded.Page)
		assert.Equal(t, domain.StatusActive, loaded.Status)
		assert.Equal(t, "yes", loaded.Answers["household.has_pet"])
		// JSON backed stores return []any for lists, which is what the runtime expects.
		assert.Equal(t, []any{"Rex", "Tom"}, loaded.Answers["household.pet_name"])
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Answers["household.has_pet"] = "no"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "yes", again.Answers["household.has_pet"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState(sessionID, "household"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, "household"))
		_ = store.Save(ctx, id2, domain.NewState(id2, "household"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunQuestionStoreContract verifies that a QuestionStore implementation
// assigns ids, applies patches and enforces case-insensitive identifiers.
// inspect returns the stored question for an id so the suite can observe writes.
func RunQuestionStoreContract(t *testing.T, store QuestionStore, inspect func(id string) (domain.Question, bool)) {
	ctx := context.Background()
	groupID := "contract-group-" + time.Now().Format("20060102150405")

	newQuestion := func(identifier string) domain.Question {
		return domain.Question{
			LocalID:    "local-" + identifier,
			Text:       "What about " + identifier + "?",
			Type:       domain.TypeFreeText,
			Identifier: identifier,
		}
	}

	t.Run("Create Assigns Distinct Ids", func(t *testing.T) {
		id1, err := store.CreateQuestion(ctx, groupID, newQuestion("first"))
		require.NoError(t, err)
		id2, err := store.CreateQuestion(ctx, groupID, newQuestion("second"))
		require.NoError(t, err)

		assert.NotEmpty(t, id1)
		assert.NotEqual(t, id1, id2)

		q, ok := inspect(id1)
		require.True(t, ok)
		assert.Equal(t, "first", q.Identifier)
		assert.Equal(t, "local-first", q.LocalID, "local id must survive persistence")
	})

	t.Run("Update Applies Patch", func(t *testing.T) {
		id, err := store.CreateQuestion(ctx, groupID, newQuestion("patched"))
		require.NoError(t, err)

		text := "Updated text"
		require.NoError(t, store.UpdateQuestion(ctx, id, domain.QuestionPatch{Text: &text}))

		q, ok := inspect(id)
		require.True(t, ok)
		assert.Equal(t, "Updated text", q.Text)
		assert.Equal(t, "patched", q.Identifier)
	})

	t.Run("Identifier Uniqueness", func(t *testing.T) {
		id, err := store.CreateQuestion(ctx, groupID, newQuestion("pet_name"))
		require.NoError(t, err)

		unique, err := store.CheckIdentifierUnique(ctx, "PET_NAME", groupID, "")
		require.NoError(t, err)
		assert.False(t, unique, "comparison is case-insensitive")

		unique, err = store.CheckIdentifierUnique(ctx, "pet_name", groupID, id)
		require.NoError(t, err)
		assert.True(t, unique, "the excluded question does not collide with itself")

		unique, err = store.CheckIdentifierUnique(ctx, "pet_name", groupID+"-other", "")
		require.NoError(t, err)
		assert.True(t, unique, "identifiers are scoped to their group")
	})

	t.Run("Delete", func(t *testing.T) {
		id, err := store.CreateQuestion(ctx, groupID, newQuestion("doomed"))
		require.NoError(t, err)
		require.NoError(t, store.DeleteQuestion(ctx, id))

		_, ok := inspect(id)
		assert.False(t, ok)

		unique, err := store.CheckIdentifierUnique(ctx, "doomed", groupID, "")
		require.NoError(t, err)
		assert.True(t, unique)
	})

	t.Run("Save Logic Tree", func(t *testing.T) {
		tree := domain.NewTree(domain.NewQuestionNode(domain.Resolved("1"), 0))
		data, err := json.Marshal(tree)
		require.NoError(t, err)
		assert.NoError(t, store.SaveLogicTree(ctx, groupID, data))
	})
}
