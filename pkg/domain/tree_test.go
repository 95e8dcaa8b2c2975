package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() Tree {
	inner := LogicNode{NodeID: "q3", Kind: KindQuestion, Depth: 1, Question: Resolved("3")}
	cond := LogicNode{
		NodeID: "c1",
		Kind:   KindConditional,
		Depth:  0,
		Cond: &Conditional{
			IfIdentifier: "has_pet",
			Operator:     OpEquals,
			Value:        "yes",
			NestedItems:  []LogicNode{inner},
		},
	}
	return NewTree(
		LogicNode{NodeID: "q1", Kind: KindQuestion, Question: Resolved("1")},
		cond,
		LogicNode{NodeID: "q2", Kind: KindQuestion, Question: Unresolved("local-2")},
	)
}

func TestTree_FindAndList(t *testing.T) {
	tree := sampleTree()

	n, path, idx, ok := tree.Find("q3")
	require.True(t, ok)
	assert.Equal(t, Path{"c1"}, path)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, n.Depth)

	list, err := tree.List(Path{"c1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = tree.List(Path{"q1"})
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, _, _, ok = tree.Find("missing")
	assert.False(t, ok)
	assert.Equal(t, 4, tree.Count())
}

func TestTree_ReplaceListCopiesPath(t *testing.T) {
	tree := sampleTree()

	next, err := tree.ReplaceList(Path{"c1"}, func(items []LogicNode) ([]LogicNode, error) {
		return append(items, LogicNode{NodeID: "q4", Kind: KindQuestion, Depth: 1, Question: Resolved("4")}), nil
	})
	require.NoError(t, err)

	assert.Equal(t, 4, tree.Count(), "original tree must be untouched")
	assert.Equal(t, 5, next.Count())
	assert.NoError(t, next.CheckDepths())
	assert.True(t, tree.Equal(sampleTree()))
}

func TestTree_CheckDepths(t *testing.T) {
	tree := sampleTree()
	require.NoError(t, tree.CheckDepths())

	broken := tree.Map(func(n LogicNode) LogicNode {
		if n.NodeID == "q3" {
			n.Depth = 3
		}
		return n
	})
	assert.Error(t, broken.CheckDepths())
	assert.NoError(t, broken.Normalize().CheckDepths())
}

func TestTree_CheckDepthsRejectsTooDeep(t *testing.T) {
	leaf := LogicNode{NodeID: "leaf", Kind: KindQuestion, Question: Resolved("x")}
	items := []LogicNode{leaf}
	for i := 0; i <= MaxDepth; i++ {
		items = []LogicNode{NewConditionalNode(Conditional{IfIdentifier: "a", NestedItems: items}, 0)}
	}
	tree := NewTree(items...).Normalize()

	assert.ErrorIs(t, tree.CheckDepths(), ErrMaxDepthExceeded)
}

func TestTree_Shift(t *testing.T) {
	tree := sampleTree()
	cond, _, _, _ := tree.Find("c1")

	shifted := cond.Shift(2)
	assert.Equal(t, 2, shifted.Depth)
	assert.Equal(t, 3, shifted.Children()[0].Depth)
	assert.Equal(t, 1, cond.Children()[0].Depth, "shift must not alias the original")
}

func TestTree_Flatten(t *testing.T) {
	flat := sampleTree().Flatten()

	var ids, parents []string
	for _, f := range flat {
		ids = append(ids, f.Node.NodeID)
		parents = append(parents, f.Parent)
	}
	assert.Equal(t, []string{"q1", "c1", "q3", "q2"}, ids)
	assert.Equal(t, []string{"", "", "c1", ""}, parents)
}

func TestTreeFromQuestions(t *testing.T) {
	tree := TreeFromQuestions([]Question{
		{ID: "1", Identifier: "a"},
		{LocalID: "l2", Identifier: "b"},
	})

	refs := tree.QuestionRefs()
	require.Len(t, refs, 2)
	assert.True(t, refs[0].IsResolved())
	local, ok := refs[1].LocalID()
	assert.True(t, ok)
	assert.Equal(t, "l2", local)
}

func TestQuestionRef(t *testing.T) {
	var zero QuestionRef
	assert.True(t, zero.IsZero())
	assert.False(t, zero.Switch(func(string) { t.Fatal("unexpected") }, func(string) { t.Fatal("unexpected") }))

	var seen string
	Resolved("42").Switch(func(string) {}, func(id string) { seen = id })
	assert.Equal(t, "42", seen)

	assert.NotEqual(t, Resolved("a").Key(), Unresolved("a").Key())
	assert.True(t, Question{ID: "42"}.Matches(Resolved("42")))
	assert.False(t, Question{LocalID: "42"}.Matches(Resolved("42")))
}
