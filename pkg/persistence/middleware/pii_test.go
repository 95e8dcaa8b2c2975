package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	// Mask keys containing "password" or "ssn"
	secureStore := middleware.NewPIIMiddleware([]string{"password", "ssn"})(underlyingStore)

	ctx := context.Background()
	sessionID := "pii-session"
	state := domain.NewState(sessionID, "household")

	state.Answers["household.username"] = "jdoe"
	state.Answers["household.user_password"] = "secret123"
	state.Answers["household.details"] = map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	}
	state.Answers["household.ssn_backup"] = []any{"111", "", "222"}

	require.NoError(t, secureStore.Save(ctx, sessionID, state))

	assert.Equal(t, "secret123", state.Answers["household.user_password"], "live state must not change")
	assert.Equal(t, "999-99-9999", state.Answers["household.details"].(map[string]any)["ssn_number"])

	storedState, err := underlyingStore.Load(ctx, sessionID)
	require.NoError(t, err)

	assert.Equal(t, "jdoe", storedState.Answers["household.username"])
	assert.Equal(t, middleware.Mask, storedState.Answers["household.user_password"])
	assert.Equal(t, []any{middleware.Mask, "", middleware.Mask}, storedState.Answers["household.ssn_backup"],
		"repeatable answers keep their instance slots")

	details := storedState.Answers["household.details"].(map[string]any)
	assert.Equal(t, "123 St", details["address"])
	assert.Equal(t, middleware.Mask, details["ssn_number"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.CompilePatterns([]string{"ok", "("})
	assert.Error(t, err)
	assert.Panics(t, func() { middleware.NewPIIMiddleware([]string{"("}) })
}

func TestChain_Order(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)

	// PII runs first, so the sealed envelope already holds masked values.
	store := middleware.Chain(underlyingStore,
		middleware.NewPIIMiddleware([]string{"secret"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	state := domain.NewState("s1", "g")
	state.Answers["g.secret"] = "hidden"
	state.Answers["g.name"] = "visible"
	require.NoError(t, store.Save(ctx, "s1", state))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Answers["g.secret"])
	assert.Equal(t, "visible", loaded.Answers["g.name"])

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}
