package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messages(issues []Issue) string {
	var sb strings.Builder
	for _, i := range issues {
		sb.WriteString(i.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestValidateGroup_Valid(t *testing.T) {
	b := dsl.New("household")
	b.Question("has_pet").Text("Do you have a pet?").Choice("yes", "no")
	b.If("has_pet", domain.OpEquals, "yes").Then(func(s *dsl.Scope) {
		s.Question("pet_name").Text("Name?")
	})
	b.If("household.has_pet", domain.OpEquals, "no").EndFlow()
	b.If("intake.age", domain.OpCountGreaterThan, "0").EndFlow()
	g, err := b.Group()
	require.NoError(t, err)

	issues := ValidateGroup(g)
	assert.Empty(t, issues, messages(issues))
}

func TestValidateGroup_Findings(t *testing.T) {
	g := &domain.Group{
		ID: "broken",
		Questions: []domain.Question{
			{ID: "1", Identifier: "color", Text: "Color?", Type: domain.TypeDropdown},
			{ID: "2", Identifier: "Color", Text: "Again?", Type: domain.TypeFreeText},
			{ID: "3", Identifier: "bad id", Text: "Bad", Type: domain.TypeFreeText},
			{ID: "4", Identifier: "unused", Text: "Unused", Type: domain.TypeFreeText},
		},
		Logic: domain.NewTree(
			domain.LogicNode{NodeID: "c0", Kind: domain.KindConditional, Cond: &domain.Conditional{
				IfIdentifier: "color", Operator: domain.OpEquals, Value: "red",
				NestedItems: []domain.LogicNode{
					{NodeID: "n1", Kind: domain.KindQuestion, Depth: 1, Question: domain.Resolved("1")},
				},
			}},
			domain.LogicNode{NodeID: "n2", Kind: domain.KindQuestion, Question: domain.Resolved("2")},
			domain.LogicNode{NodeID: "n3", Kind: domain.KindQuestion, Question: domain.Resolved("2")},
			domain.LogicNode{NodeID: "n4", Kind: domain.KindQuestion, Question: domain.Resolved("3")},
			domain.LogicNode{NodeID: "ghost", Kind: domain.KindQuestion, Question: domain.Resolved("99")},
			domain.LogicNode{NodeID: "c1", Kind: domain.KindConditional, Cond: &domain.Conditional{
				IfIdentifier: "color", Operator: "matches", Value: "x", EndFlow: true,
			}},
			domain.LogicNode{NodeID: "c2", Kind: domain.KindConditional, Cond: &domain.Conditional{
				IfIdentifier: "color", Operator: domain.OpCountEquals, Value: "two", EndFlow: true,
			}},
			domain.LogicNode{NodeID: "c3", Kind: domain.KindConditional, Cond: &domain.Conditional{
				IfIdentifier: "nowhere", Operator: domain.OpEquals,
			}},
		),
	}

	issues := ValidateGroup(g)
	out := messages(issues)

	for _, want := range []string{
		"[error] broken/Color: identifier collides with \"color\"",
		"[error] broken/bad id: invalid question",
		"[warning] broken/color: dropdown question has no options",
		"[warning] broken/unused: question is not placed in the tree",
		"[error] broken/Color: question is placed more than once",
		"[error] broken/ghost: dangling question reference",
		"[error] broken/c1: unknown operator \"matches\"",
		"[error] broken/c2: count_equals needs an integer value",
		"[warning] broken/c3: conditional has no effect",
		"[warning] broken/c3: condition reads \"nowhere\", which is not a question",
		"[warning] broken/c0: condition reads \"color\" before it is asked",
	} {
		assert.Contains(t, out, want)
	}
}

func TestValidateAll(t *testing.T) {
	b := dsl.New("ok")
	b.Question("name").Text("Name?")
	good, err := b.Group()
	require.NoError(t, err)

	bad := &domain.Group{ID: "bad", Questions: []domain.Question{
		{ID: "1", Identifier: "x", Type: "slider", Text: "X"},
	}}

	report, err := ValidateAll(context.Background(), memory.NewLoader(good, bad))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Groups)
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, "bad", report.Errors()[0].GroupID)

	err = report.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 1 errors")
}
