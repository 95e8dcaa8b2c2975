package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor/internal/testutils"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports/tests"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const intakeDoc = `---
id: intake
name: Intake
questions:
  - identifier: has_pet
    question_text: Do you have a pet?
    question_type: multiple_choice
    is_required: true
    options:
      - value: "yes"
        label: "Yes"
      - value: "no"
        label: "No"
  - identifier: pet_name
    question_text: What is its name?
    question_type: free_text
logic:
  - type: question
    questionId: has_pet
    depth: 0
  - type: conditional
    depth: 0
    conditional:
      ifIdentifier: has_pet
      operator: equals
      value: "yes"
      nestedItems:
        - type: question
          questionId: pet_name
          depth: 1
---
Questions about the household.`

const contactJSON = `{
  "id": "contact",
  "questions": [
    {"id": 42, "identifier": "email", "question_text": "Email?", "question_type": "free_text"}
  ],
  "logic": [
    {"type": "question", "questionId": 42, "depth": 0}
  ]
}`

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	dir, repo := testutils.SetupTestRepo(t)
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return New(loam.NewTypedRepository[GroupMetadata](repo))
}

func TestLoader_Contract(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"intake.md":    intakeDoc,
		"contact.json": contactJSON,
	})
	tests.GroupLoaderContractTest(t, loader, map[string]int{"intake": 2, "contact": 1})
}

func TestLoader_DecodesGroup(t *testing.T) {
	loader := newLoader(t, map[string]string{"intake.md": intakeDoc})

	g, err := loader.LoadGroup(context.Background(), "intake")
	require.NoError(t, err)

	assert.Equal(t, "intake", g.Identifier, "identifier defaults to the id")
	assert.Equal(t, "Intake", g.Name)
	assert.Equal(t, "Questions about the household.", g.Description)

	require.Len(t, g.Questions, 2)
	assert.Equal(t, "has_pet", g.Questions[0].ID, "id defaults to the identifier")
	assert.True(t, g.Questions[0].Required)
	assert.Len(t, g.Questions[0].Options, 2)

	require.Len(t, g.Logic.Items, 2)
	cond := g.Logic.Items[1]
	require.NotNil(t, cond.Cond)
	assert.Equal(t, domain.OpEquals, cond.Cond.Operator)
	require.Len(t, cond.Cond.NestedItems, 1)
	id, ok := cond.Cond.NestedItems[0].Question.PersistedID()
	require.True(t, ok)
	assert.Equal(t, "pet_name", id)
}

func TestLoader_NumericIDs(t *testing.T) {
	loader := newLoader(t, map[string]string{"contact.json": contactJSON})

	g, err := loader.LoadGroup(context.Background(), "contact")
	require.NoError(t, err)
	require.Len(t, g.Questions, 1)
	assert.Equal(t, "42", g.Questions[0].ID)

	id, ok := g.Logic.Items[0].Question.PersistedID()
	require.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestLoader_ListGroups_DetectsCollisions(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"foo.md":   "---\nid: foo\n---\nExplicit",
		"foo.json": `{"id": "foo"}`,
	})

	_, err := loader.ListGroups(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLoader_RejectsDuplicateQuestionIDs(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"dup.json": `{"id": "dup", "questions": [
			{"identifier": "a", "question_text": "A", "question_type": "free_text"},
			{"identifier": "a", "question_text": "B", "question_type": "free_text"}
		]}`,
	})

	_, err := loader.LoadGroup(context.Background(), "dup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestLoader_SaveGroup_RoundTrip(t *testing.T) {
	b := dsl.New("household").Named("Household")
	b.Question("has_pet").Text("Do you have a pet?").Choice("yes", "no").Required()
	b.If("has_pet", domain.OpEquals, "yes").EndFlow().Then(func(s *dsl.Scope) {
		s.Question("pet_name").Text("What is its name?").Repeatable("pets")
	})
	b.Question("notes").Text("Anything else?")
	g, err := b.Group()
	require.NoError(t, err)
	g.Description = "Questions about the household."

	dir := t.TempDir()
	writer, err := Create(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, writer.SaveGroup(ctx, g))

	reader, err := Open(dir)
	require.NoError(t, err)
	loaded, err := reader.LoadGroup(ctx, "household")
	require.NoError(t, err)

	assert.Equal(t, "Household", loaded.Name)
	assert.Equal(t, "Questions about the household.", loaded.Description)
	require.Len(t, loaded.Questions, 3)
	assert.Equal(t, []domain.Option{{Value: "yes", Label: "yes"}, {Value: "no", Label: "no"}}, loaded.Questions[0].Options)
	assert.True(t, loaded.Questions[1].Repeatable)

	require.Len(t, loaded.Logic.Items, 3)
	cond := loaded.Logic.Items[1]
	require.True(t, cond.IsConditional())
	assert.True(t, cond.Cond.EndFlow)
	require.Len(t, cond.Cond.NestedItems, 1)
	assert.Equal(t, 1, cond.Cond.NestedItems[0].Depth)
}

func TestLoader_ListGroups_SkipsOtherDocuments(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"intake.md":  intakeDoc,
		"arbor.yaml": "page_size: 3\nstore:\n  kind: file\n",
	})

	ids, err := loader.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"intake"}, ids)
}
