package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedStore wraps the memory store with switches to hold or fail calls.
type gatedStore struct {
	*memory.QuestionStore

	createGate    chan struct{}
	updateGate    chan struct{}
	updateStarted chan struct{}
	checkGate     chan struct{}
	treeDelay     time.Duration
	// stale makes identifier checks report every identifier as free.
	stale atomic.Bool

	mu        sync.Mutex
	treeErr   error
	createErr error

	creates atomic.Int32
	deletes atomic.Int32
	inTree  atomic.Int32
	maxTree atomic.Int32
}

func newGatedStore() *gatedStore {
	return &gatedStore{QuestionStore: memory.NewQuestionStore()}
}

func (s *gatedStore) failTree(err error) {
	s.mu.Lock()
	s.treeErr = err
	s.mu.Unlock()
}

func (s *gatedStore) CreateQuestion(ctx context.Context, groupID string, q domain.Question) (string, error) {
	s.creates.Add(1)
	if s.createGate != nil {
		<-s.createGate
	}
	s.mu.Lock()
	err := s.createErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.QuestionStore.CreateQuestion(ctx, groupID, q)
}

func (s *gatedStore) CheckIdentifierUnique(ctx context.Context, identifier, groupID, excludingID string) (bool, error) {
	if s.checkGate != nil {
		<-s.checkGate
	}
	if s.stale.Load() {
		return true, nil
	}
	return s.QuestionStore.CheckIdentifierUnique(ctx, identifier, groupID, excludingID)
}

func (s *gatedStore) UpdateQuestion(ctx context.Context, id string, patch domain.QuestionPatch) error {
	if s.updateStarted != nil {
		select {
		case s.updateStarted <- struct{}{}:
		default:
		}
	}
	if s.updateGate != nil {
		<-s.updateGate
	}
	return s.QuestionStore.UpdateQuestion(ctx, id, patch)
}

func (s *gatedStore) DeleteQuestion(ctx context.Context, id string) error {
	s.deletes.Add(1)
	return s.QuestionStore.DeleteQuestion(ctx, id)
}

func (s *gatedStore) SaveLogicTree(ctx context.Context, groupID string, tree json.RawMessage) error {
	n := s.inTree.Add(1)
	defer s.inTree.Add(-1)
	for {
		max := s.maxTree.Load()
		if n <= max || s.maxTree.CompareAndSwap(max, n) {
			break
		}
	}
	if s.treeDelay > 0 {
		time.Sleep(s.treeDelay)
	}
	s.mu.Lock()
	err := s.treeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.QuestionStore.SaveLogicTree(ctx, groupID, tree)
}

// petGroup is a root question, a conditional holding two questions and a
// nested conditional, and a trailing question.
func petGroup(t *testing.T) *domain.Group {
	t.Helper()
	b := dsl.New("pets")
	b.Question("has_pet").Choice("yes", "no")
	b.If("has_pet", domain.OpEquals, "yes").Then(func(s *dsl.Scope) {
		s.Question("pet_name")
		s.Question("pet_age")
		s.If("pet_age", domain.OpEquals, "1").Then(func(s *dsl.Scope) {
			s.Question("puppy_food")
		})
	})
	b.Question("notes")
	g, err := b.Group()
	require.NoError(t, err)
	return g
}

func flatGroup(t *testing.T) *domain.Group {
	t.Helper()
	b := dsl.New("flat")
	b.Question("q1")
	b.Question("q2")
	b.Question("q3")
	g, err := b.Group()
	require.NoError(t, err)
	return g
}

func newTestEditor(t *testing.T, store *gatedStore, g *domain.Group, opts ...Option) *Editor {
	t.Helper()
	if g != nil {
		require.NoError(t, store.PutGroup(g))
	} else {
		g = &domain.Group{ID: "empty", Identifier: "empty"}
	}
	reg := registry.New(g.ID, registry.WithChecker(store), registry.WithCheckDebounce(0))
	require.NoError(t, reg.Load(g.Questions...))

	opts = append([]Option{WithContentDebounce(time.Hour)}, opts...)
	e := New(reg, store, g.Logic, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return e
}

func flush(t *testing.T, e *Editor) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Flush(ctx)
}

func identifiersOf(t *testing.T, e *Editor) []string {
	t.Helper()
	var out []string
	for _, ref := range e.Tree().QuestionRefs() {
		q, ok := e.Registry().Resolve(ref)
		require.True(t, ok, "unresolved %s", ref)
		out = append(out, q.Identifier)
	}
	return out
}

func nodeFor(t *testing.T, e *Editor, identifier string) string {
	t.Helper()
	var id string
	e.Tree().Walk(func(n domain.LogicNode, _ domain.Path, _ int) bool {
		if n.IsQuestion() {
			if q, ok := e.Registry().Resolve(n.Question); ok && q.Identifier == identifier {
				id = n.NodeID
				return false
			}
		}
		return true
	})
	require.NotEmpty(t, id, "no node for %s", identifier)
	return id
}

func TestEditor_InsertThenAppendOrdering(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	e := newTestEditor(t, store, flatGroup(t))

	_, err := e.InsertQuestionBefore(ctx, nil, 0, domain.Question{Identifier: "q_new"})
	require.NoError(t, err)
	_, err = e.AppendQuestion(ctx, nil, domain.Question{Identifier: "q_end"})
	require.NoError(t, err)

	assert.Equal(t, []string{"q_new", "q1", "q2", "q3", "q_end"}, identifiersOf(t, e))
	require.NoError(t, e.Tree().CheckDepths())
	require.NoError(t, flush(t, e))

	saved, err := store.Tree("flat")
	require.NoError(t, err)
	assert.True(t, saved.Equal(e.Tree()))
}

func TestEditor_InsertRemoveInverse(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), petGroup(t))
	before := e.Tree()

	cases := []struct {
		name  string
		path  func() domain.Path
		index int
	}{
		{"root front", func() domain.Path { return nil }, 0},
		{"root end", func() domain.Path { return nil }, 3},
		{"nested", func() domain.Path {
			_, path, _, _ := e.Tree().Find(nodeFor(t, e, "pet_name"))
			return path
		}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			change, err := e.InsertQuestionBefore(ctx, tc.path(), tc.index, domain.Question{})
			require.NoError(t, err)
			require.NoError(t, change.Tree.CheckDepths())
			assert.Equal(t, before.Count()+1, change.Tree.Count())

			after, err := e.RemoveNode(ctx, change.NodeID)
			require.NoError(t, err)
			assert.True(t, before.Equal(after.Tree))
		})
	}
}

func TestEditor_DefaultsForBlankDraft(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), nil)

	first, err := e.AppendQuestion(ctx, nil, domain.Question{})
	require.NoError(t, err)
	second, err := e.AppendQuestion(ctx, nil, domain.Question{})
	require.NoError(t, err)

	assert.Equal(t, domain.TypeFreeText, first.Question.Type)
	assert.NotEmpty(t, first.Question.Text)
	assert.NotEqual(t, first.Question.Identifier, second.Question.Identifier)
}

func TestEditor_InvalidInsertPositions(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), flatGroup(t))
	before := e.Tree()

	_, err := e.InsertQuestionBefore(ctx, nil, 7, domain.Question{})
	assert.ErrorIs(t, err, domain.ErrInvalidPath)

	_, err = e.InsertQuestionBefore(ctx, domain.Path{"missing"}, 0, domain.Question{})
	assert.ErrorIs(t, err, domain.ErrInvalidPath)

	_, err = e.InsertConditionalAfter(ctx, nil, 3, ConditionalDraft{})
	assert.ErrorIs(t, err, domain.ErrInvalidPath)

	_, err = e.RemoveNode(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	assert.True(t, before.Equal(e.Tree()))
	assert.Equal(t, 3, e.Registry().Len())
}

func TestEditor_CascadeRemove(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	e := newTestEditor(t, store, petGroup(t))

	_, path, _, ok := e.Tree().Find(nodeFor(t, e, "pet_name"))
	require.True(t, ok)
	require.Len(t, path, 1)

	change, err := e.RemoveNode(ctx, path[0])
	require.NoError(t, err)
	require.NoError(t, change.Tree.CheckDepths())

	assert.Equal(t, []string{"has_pet", "notes"}, identifiersOf(t, e))
	assert.Equal(t, 2, e.Registry().Len())

	require.NoError(t, flush(t, e))
	assert.EqualValues(t, 3, store.deletes.Load())

	g, err := store.LoadGroup(ctx, "pets")
	require.NoError(t, err)
	require.Len(t, g.Questions, 2)
	assert.Equal(t, "has_pet", g.Questions[0].Identifier)
	assert.Equal(t, "notes", g.Questions[1].Identifier)
}

func TestEditor_InsertConditionalDefaults(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), flatGroup(t))

	change, err := e.InsertConditionalAfter(ctx, nil, 1, ConditionalDraft{Value: "yes"})
	require.NoError(t, err)
	require.NoError(t, change.Tree.CheckDepths())

	node, path, idx, ok := change.Tree.Find(change.NodeID)
	require.True(t, ok)
	assert.Empty(t, path)
	assert.Equal(t, 2, idx)
	require.True(t, node.IsConditional())
	assert.Equal(t, "q2", node.Cond.IfIdentifier)
	assert.Equal(t, domain.OpEquals, node.Cond.Operator)
	require.Len(t, node.Cond.NestedItems, 1)
	assert.Equal(t, 1, node.Cond.NestedItems[0].Depth)

	q, ok := e.Registry().Resolve(node.Cond.NestedItems[0].Question)
	require.True(t, ok)
	assert.Equal(t, change.Question.LocalID, q.LocalID)
}

func TestEditor_InsertConditionalAtFrontHasNoDefault(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), flatGroup(t))

	change, err := e.InsertConditionalAfter(ctx, nil, -1, ConditionalDraft{})
	require.NoError(t, err)
	assert.Equal(t, change.NodeID, change.Tree.Items[0].NodeID)
	assert.Empty(t, change.Tree.Items[0].Cond.IfIdentifier)
}

func TestEditor_MaxDepth(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), nil)

	var path domain.Path
	for i := 0; i < domain.MaxDepth; i++ {
		change, err := e.InsertConditionalAfter(ctx, path, -1, ConditionalDraft{})
		require.NoError(t, err, "level %d", i)
		require.NoError(t, change.Tree.CheckDepths())
		path = path.Child(change.NodeID)
	}
	before := e.Tree()

	_, err := e.InsertConditionalAfter(ctx, path, -1, ConditionalDraft{})
	assert.ErrorIs(t, err, domain.ErrMaxDepthExceeded)
	assert.True(t, before.Equal(e.Tree()))

	change, err := e.InsertQuestionBefore(ctx, path, 0, domain.Question{})
	require.NoError(t, err)
	node, _, _, _ := change.Tree.Find(change.NodeID)
	assert.Equal(t, domain.MaxDepth, node.Depth)
}

func TestEditor_MoveNodeUpOneLevel(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), petGroup(t))

	t.Run("nested node lands after its parent", func(t *testing.T) {
		nodeID := nodeFor(t, e, "puppy_food")
		_, oldPath, _, _ := e.Tree().Find(nodeID)
		require.Len(t, oldPath, 2)

		change, err := e.MoveNodeUpOneLevel(ctx, nodeID)
		require.NoError(t, err)
		require.NoError(t, change.Tree.CheckDepths())

		node, path, idx, ok := change.Tree.Find(nodeID)
		require.True(t, ok)
		assert.Equal(t, oldPath[:1], path)
		assert.Equal(t, 1, node.Depth)

		list, err := change.Tree.List(path)
		require.NoError(t, err)
		assert.Equal(t, oldPath[1], list[idx-1].NodeID)
		parent, _, _, _ := change.Tree.Find(oldPath[1])
		assert.Empty(t, parent.Children())
	})

	t.Run("root node stays put", func(t *testing.T) {
		before := e.Tree()
		change, err := e.MoveNodeUpOneLevel(ctx, nodeFor(t, e, "has_pet"))
		require.NoError(t, err)
		assert.True(t, before.Equal(change.Tree))
	})

	t.Run("conditional carries its subtree", func(t *testing.T) {
		_, path, _, _ := e.Tree().Find(nodeFor(t, e, "pet_name"))
		// Put a conditional under the outer block and lift it out.
		inner, err := e.InsertConditionalAfter(ctx, path, 0, ConditionalDraft{})
		require.NoError(t, err)

		change, err := e.MoveNodeUpOneLevel(ctx, inner.NodeID)
		require.NoError(t, err)
		require.NoError(t, change.Tree.CheckDepths())

		node, newPath, _, ok := change.Tree.Find(inner.NodeID)
		require.True(t, ok)
		assert.Empty(t, newPath)
		assert.Equal(t, 0, node.Depth)
		assert.Equal(t, 1, node.Cond.NestedItems[0].Depth)
	})
}

func TestEditor_RefRewrittenAfterCreate(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	e := newTestEditor(t, store, flatGroup(t))

	change, err := e.AppendQuestion(ctx, nil, domain.Question{Identifier: "fresh"})
	require.NoError(t, err)
	node, _, _, _ := change.Tree.Find(change.NodeID)
	assert.False(t, node.Question.IsResolved())

	require.NoError(t, flush(t, e))

	q, ok := e.Registry().Get(change.Question.LocalID)
	require.True(t, ok)
	require.True(t, q.Saved())
	assert.Equal(t, StatusSaved, e.SaveStatus(q.LocalID))

	node, _, _, _ = e.Tree().Find(change.NodeID)
	id, ok := node.Question.PersistedID()
	require.True(t, ok)
	assert.Equal(t, q.ID, id)

	saved, err := store.Tree("flat")
	require.NoError(t, err)
	node, _, _, ok = saved.Find(change.NodeID)
	require.True(t, ok)
	assert.True(t, node.Question.IsResolved())
}

func TestEditor_RemoveDuringCreateDeletesRecord(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	store.createGate = make(chan struct{})
	e := newTestEditor(t, store, flatGroup(t))

	change, err := e.AppendQuestion(ctx, nil, domain.Question{Identifier: "short_lived"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return store.creates.Load() == 1 }, time.Second, time.Millisecond)

	_, err = e.RemoveNode(ctx, change.NodeID)
	require.NoError(t, err)
	close(store.createGate)
	require.NoError(t, flush(t, e))

	assert.EqualValues(t, 1, store.deletes.Load())
	g, err := store.LoadGroup(ctx, "flat")
	require.NoError(t, err)
	for _, q := range g.Questions {
		assert.NotEqual(t, "short_lived", q.Identifier)
	}
	_, ok := e.Registry().Get(change.Question.LocalID)
	assert.False(t, ok)
}

func TestEditor_CreateFailureKeepsNode(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	store.createErr = errors.New("backend down")
	e := newTestEditor(t, store, flatGroup(t))

	change, err := e.AppendQuestion(ctx, nil, domain.Question{Identifier: "doomed"})
	require.NoError(t, err)
	require.NoError(t, flush(t, e))

	assert.Equal(t, StatusFailed, e.SaveStatus(change.Question.LocalID))
	_, _, _, ok := e.Tree().Find(change.NodeID)
	assert.True(t, ok)
}

func TestEditor_TreeSavesNeverOverlap(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	store.treeDelay = 5 * time.Millisecond
	e := newTestEditor(t, store, flatGroup(t))
	nodeID := nodeFor(t, e, "q2")

	for i := 0; i < 10; i++ {
		_, err := e.SetQuestionStopFlow(ctx, nodeID, i%2 == 0)
		require.NoError(t, err)
	}
	require.NoError(t, flush(t, e))

	assert.EqualValues(t, 1, store.maxTree.Load())
	assert.LessOrEqual(t, e.TreeSaves(), 10)

	saved, err := store.Tree("flat")
	require.NoError(t, err)
	node, _, _, ok := saved.Find(nodeID)
	require.True(t, ok)
	assert.False(t, node.StopFlow)
}

func TestEditor_FailedTreeSaveKeepsTree(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	store.failTree(errors.New("disk full"))
	e := newTestEditor(t, store, flatGroup(t))

	_, err := e.SetQuestionStopFlow(ctx, nodeFor(t, e, "q1"), true)
	require.NoError(t, err)

	err = flush(t, e)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	node, _, _, _ := e.Tree().Find(nodeFor(t, e, "q1"))
	assert.True(t, node.StopFlow)

	store.failTree(nil)
	_, err = e.SetQuestionStopFlow(ctx, nodeFor(t, e, "q3"), true)
	require.NoError(t, err)
	require.NoError(t, flush(t, e))
	assert.NoError(t, e.TreeError())

	saved, err := store.Tree("flat")
	require.NoError(t, err)
	assert.True(t, saved.Equal(e.Tree()))
}

func TestEditor_StaleUpdateResponseIgnored(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	e := newTestEditor(t, store, flatGroup(t))
	q, ok := e.Registry().ByIdentifier("q1")
	require.True(t, ok)

	store.updateGate = make(chan struct{})
	store.updateStarted = make(chan struct{}, 1)

	first := "first"
	_, err := e.UpdateQuestion(ctx, q.LocalID, domain.QuestionPatch{Text: &first})
	require.NoError(t, err)
	go e.autosave.Flush(q.LocalID)
	<-store.updateStarted

	second := "second"
	_, err = e.UpdateQuestion(ctx, q.LocalID, domain.QuestionPatch{Text: &second})
	require.NoError(t, err)

	close(store.updateGate)
	e.pending.wait()
	assert.Equal(t, StatusDirty, e.SaveStatus(q.LocalID))

	require.NoError(t, flush(t, e))
	assert.Equal(t, StatusSaved, e.SaveStatus(q.LocalID))
	stored, ok := store.Question(q.ID)
	require.True(t, ok)
	assert.Equal(t, "second", stored.Text)
}

func TestEditor_DuplicateIdentifierBlocksAutosave(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	e := newTestEditor(t, store, flatGroup(t))

	// Another author already saved "taken" in this group.
	_, err := store.QuestionStore.CreateQuestion(ctx, "flat", domain.Question{Text: "x", Type: domain.TypeFreeText, Identifier: "taken"})
	require.NoError(t, err)

	q, _ := e.Registry().ByIdentifier("q1")
	taken := "taken"
	_, err = e.UpdateQuestion(ctx, q.LocalID, domain.QuestionPatch{Identifier: &taken})
	require.NoError(t, err)

	require.NoError(t, flush(t, e))
	assert.Equal(t, registry.IdentifierDuplicate, e.Registry().IdentifierStatus("taken"))
	assert.Equal(t, StatusBlocked, e.SaveStatus(q.LocalID))
	stored, _ := store.Question(q.ID)
	assert.Equal(t, "q1", stored.Identifier)

	free := "free"
	_, err = e.UpdateQuestion(ctx, q.LocalID, domain.QuestionPatch{Identifier: &free})
	require.NoError(t, err)
	require.NoError(t, flush(t, e))
	assert.Equal(t, StatusSaved, e.SaveStatus(q.LocalID))
	stored, _ = store.Question(q.ID)
	assert.Equal(t, "free", stored.Identifier)
}

func TestEditor_AutosaveWaitsForIdentifierCheck(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	e := newTestEditor(t, store, flatGroup(t))
	store.checkGate = make(chan struct{})

	q, _ := e.Registry().ByIdentifier("q1")
	renamed := "renamed"
	_, err := e.UpdateQuestion(ctx, q.LocalID, domain.QuestionPatch{Identifier: &renamed})
	require.NoError(t, err)

	require.True(t, e.autosave.Flush(q.LocalID))
	assert.Equal(t, StatusBlocked, e.SaveStatus(q.LocalID), "no save while the identifier is being checked")
	stored, _ := store.Question(q.ID)
	assert.Equal(t, "q1", stored.Identifier)

	close(store.checkGate)
	require.NoError(t, flush(t, e))
	assert.Equal(t, StatusSaved, e.SaveStatus(q.LocalID))
	stored, _ = store.Question(q.ID)
	assert.Equal(t, "renamed", stored.Identifier)
}

func TestEditor_StoreDuplicateBlocksAutosave(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	e := newTestEditor(t, store, flatGroup(t))

	_, err := store.QuestionStore.CreateQuestion(ctx, "flat", domain.Question{Text: "x", Type: domain.TypeFreeText, Identifier: "taken"})
	require.NoError(t, err)
	store.stale.Store(true)

	q, _ := e.Registry().ByIdentifier("q1")
	taken := "taken"
	_, err = e.UpdateQuestion(ctx, q.LocalID, domain.QuestionPatch{Identifier: &taken})
	require.NoError(t, err)

	require.NoError(t, flush(t, e))
	assert.Equal(t, StatusBlocked, e.SaveStatus(q.LocalID), "a rejected duplicate is not a persistence failure")
	stored, _ := store.Question(q.ID)
	assert.Equal(t, "q1", stored.Identifier)
}

func TestEditor_LocalDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), flatGroup(t))

	q, _ := e.Registry().ByIdentifier("q1")
	dup := "Q2"
	_, err := e.UpdateQuestion(ctx, q.LocalID, domain.QuestionPatch{Identifier: &dup})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentifier)
	assert.Equal(t, StatusBlocked, e.SaveStatus(q.LocalID))

	_, err = e.AppendQuestion(ctx, nil, domain.Question{Identifier: "q3"})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentifier)
	assert.Equal(t, 3, e.Tree().Count())
}

func TestEditor_SetConditional(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), petGroup(t))
	_, path, _, _ := e.Tree().Find(nodeFor(t, e, "pet_name"))

	op := domain.OpNotEquals
	value := "no"
	end := true
	change, err := e.SetConditional(ctx, path[0], ConditionalPatch{Operator: &op, Value: &value, EndFlow: &end})
	require.NoError(t, err)

	node, _, _, _ := change.Tree.Find(path[0])
	assert.Equal(t, "has_pet", node.Cond.IfIdentifier)
	assert.Equal(t, domain.OpNotEquals, node.Cond.Operator)
	assert.Equal(t, "no", node.Cond.Value)
	assert.True(t, node.Cond.EndFlow)

	bad := domain.Operator("like")
	_, err = e.SetConditional(ctx, path[0], ConditionalPatch{Operator: &bad})
	assert.Error(t, err)

	_, err = e.SetConditional(ctx, nodeFor(t, e, "notes"), ConditionalPatch{Value: &value})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestEditor_HealDanglingReferences(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	reg := registry.New("heal")
	require.NoError(t, reg.Load(
		domain.Question{ID: "10", LocalID: "loc-linked", Text: "Linked", Type: domain.TypeFreeText, Identifier: "linked"},
		domain.Question{ID: "11", LocalID: "loc-orphan", Text: "Orphan", Type: domain.TypeFreeText, Identifier: "orphan"},
	))
	tree := domain.NewTree(
		domain.NewQuestionNode(domain.Unresolved("loc-linked"), 0),
		domain.NewQuestionNode(domain.Resolved("999"), 0),
	)

	var events []*domain.HealEvent
	e := New(reg, store, tree,
		WithContentDebounce(time.Hour),
		WithLifecycleHooks(domain.LifecycleHooks{
			OnHeal: func(_ context.Context, ev *domain.HealEvent) { events = append(events, ev) },
		}),
	)

	report, err := e.HealDanglingReferences(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Relinked, 1)
	assert.Len(t, report.Dangling, 1)
	assert.Equal(t, []string{"loc-orphan"}, report.Reattached)

	healed := e.Tree()
	require.Len(t, healed.Items, 3)
	id, ok := healed.Items[0].Question.PersistedID()
	require.True(t, ok)
	assert.Equal(t, "10", id)
	id, _ = healed.Items[2].Question.PersistedID()
	assert.Equal(t, "11", id)

	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Reattached)

	again, err := e.HealDanglingReferences(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
	assert.Len(t, again.Dangling, 1)

	require.NoError(t, e.Close(ctx))
}

func TestEditor_Sets(t *testing.T) {
	b := dsl.New("family")
	b.Question("intro")
	b.Question("child_name").Repeatable("children")
	b.Question("child_age").Repeatable("children")
	g, err := b.Group()
	require.NoError(t, err)

	e := newTestEditor(t, newGatedStore(), g)
	sets := e.Sets()
	require.Len(t, sets, 1)
	assert.Equal(t, 1, sets[0].StartIndex)
	assert.Equal(t, 2, sets[0].Len())
}

func TestEditor_Closed(t *testing.T) {
	ctx := context.Background()
	e := newTestEditor(t, newGatedStore(), flatGroup(t))
	require.NoError(t, e.Close(ctx))

	_, err := e.AppendQuestion(ctx, nil, domain.Question{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.RemoveNode(ctx, nodeFor(t, e, "q1"))
	assert.ErrorIs(t, err, ErrClosed)
}
