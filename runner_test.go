package arbor_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func petEngine(t *testing.T) *arbor.Engine {
	t.Helper()
	b := dsl.New("household")
	b.Question("has_pet").Text("Do you have a pet?").Choice("yes", "no").Required()
	b.If("has_pet", domain.OpEquals, "yes").Then(func(s *dsl.Scope) {
		s.Question("pet_name").Text("What is its name?")
	})
	b.Question("notes").Text("Anything else?")
	loader, err := b.Build()
	require.NoError(t, err)

	eng, err := arbor.New(loader)
	require.NoError(t, err)
	return eng
}

func TestRunner_CompletesSession(t *testing.T) {
	eng := petEngine(t)
	ctx := context.Background()
	sess, err := eng.OpenSession(ctx, "r1", "household")
	require.NoError(t, err)

	var out bytes.Buffer
	runner := arbor.NewRunner(strings.NewReader("yes\nRex\n\n"), &out)
	runner.Headless = true
	require.NoError(t, runner.Run(ctx, sess))

	assert.Contains(t, out.String(), "What is its name?")
	assert.Contains(t, out.String(), "All done")
	assert.Equal(t, domain.StatusCompleted, sess.Status())
	assert.Equal(t, "Rex", sess.Answers()["household.pet_name"])
}

func TestRunner_RepromptsMissingAnswers(t *testing.T) {
	eng := petEngine(t)
	ctx := context.Background()
	sess, err := eng.OpenSession(ctx, "r2", "household")
	require.NoError(t, err)

	var out bytes.Buffer
	runner := arbor.NewRunner(strings.NewReader("\n\nno\n"), &out)
	runner.Headless = true
	require.NoError(t, runner.Run(ctx, sess))

	assert.Contains(t, out.String(), "Please answer")
	assert.Equal(t, "no", sess.Answers()["household.has_pet"])
	assert.NotContains(t, out.String(), "What is its name?")
}

func TestRunner_RejectsInvalidChoice(t *testing.T) {
	eng := petEngine(t)
	ctx := context.Background()
	sess, err := eng.OpenSession(ctx, "r3", "household")
	require.NoError(t, err)

	var out bytes.Buffer
	runner := arbor.NewRunner(strings.NewReader("maybe\nquit\n"), &out)
	runner.Headless = true
	require.NoError(t, runner.Run(ctx, sess))

	assert.Contains(t, out.String(), "! ")
	assert.Contains(t, out.String(), "Bye!")
	_, answered := sess.Answers()["household.has_pet"]
	assert.False(t, answered)
}

func TestRunner_RequiresIO(t *testing.T) {
	eng := petEngine(t)
	sess, err := eng.OpenSession(context.Background(), "r4", "household")
	require.NoError(t, err)

	assert.Error(t, (&arbor.Runner{}).Run(context.Background(), sess))
}

func TestRunner_RejectsOversizedInput(t *testing.T) {
	t.Setenv("ARBOR_MAX_INPUT_SIZE", "8")
	eng := petEngine(t)
	ctx := context.Background()
	sess, err := eng.OpenSession(ctx, "r5", "household")
	require.NoError(t, err)

	var out bytes.Buffer
	runner := arbor.NewRunner(strings.NewReader("a-very-long-answer\nno\n\n"), &out)
	runner.Headless = true
	require.NoError(t, runner.Run(ctx, sess))

	assert.Contains(t, out.String(), "input exceeds maximum allowed size")
	assert.Equal(t, "no", sess.Answers()["household.has_pet"])
}
