package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_ConditionalGroup(t *testing.T) {
	b := New("household").Named("Household")

	b.Question("has_pet").
		Text("Do you have a pet?").
		Choice("yes", "no").
		Required()

	b.If("has_pet", domain.OpEquals, "yes").Then(func(s *Scope) {
		s.Question("pet_name").Text("What is its name?")
		s.If("pet_name", domain.OpNotEquals, "").Then(func(s *Scope) {
			s.Question("pet_age").Text("How old?").StopFlow()
		})
	}).EndFlow()

	b.Question("owner").Text("Who owns the house?")

	g, err := b.Group()
	require.NoError(t, err)

	assert.Equal(t, "Household", g.Name)
	assert.Len(t, g.Questions, 4)
	require.NoError(t, g.Logic.CheckDepths())
	assert.Equal(t, 6, g.Logic.Count())

	cond := g.Logic.Items[1]
	require.True(t, cond.IsConditional())
	assert.True(t, cond.Cond.EndFlow)
	assert.Equal(t, "has_pet", cond.Cond.IfIdentifier)

	age, path, _, ok := g.Logic.Find("n-pet_age")
	require.True(t, ok)
	assert.Equal(t, domain.Path{"c1", "c2"}, path)
	assert.Equal(t, 2, age.Depth)
	assert.True(t, age.StopFlow)

	id, ok := age.Question.PersistedID()
	require.True(t, ok)
	assert.Equal(t, "q3", id)
}

func TestBuilder_RejectsDuplicateIdentifiers(t *testing.T) {
	b := New("g")
	b.Question("pet_name")
	b.Question("Pet_Name")

	_, err := b.Group()
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentifier)
}

func TestBuilder_RejectsInvalidQuestions(t *testing.T) {
	b := New("g")
	b.Question("bad id")

	_, err := b.Build()
	assert.ErrorIs(t, err, domain.ErrInvalidQuestion)
}

func TestBuilder_WithoutLogic(t *testing.T) {
	b := New("g").WithoutLogic()
	b.Question("a")
	b.Question("b")

	loader, err := b.Build()
	require.NoError(t, err)

	g, err := loader.LoadGroup(context.Background(), "g")
	require.NoError(t, err)
	assert.True(t, g.Logic.IsEmpty())
	assert.Equal(t, 2, g.EffectiveLogic().Count())
}
