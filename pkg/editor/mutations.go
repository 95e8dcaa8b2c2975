package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Change is the outcome of a structural edit.
type Change struct {
	// Tree is the snapshot after the edit.
	Tree domain.Tree
	// NodeID is the node that was created or moved.
	NodeID string
	// Question is the question created by the edit, if any.
	Question domain.Question
}

// ConditionalDraft describes a conditional block to insert.
type ConditionalDraft struct {
	// IfIdentifier defaults to the nearest preceding question in the same list.
	IfIdentifier string
	// Operator defaults to equals.
	Operator domain.Operator
	Value    string
	EndFlow  bool
	StopFlow bool
	// Question is the draft of the nested question created with the block.
	Question domain.Question
}

// ConditionalPatch is a partial update of a conditional block.
type ConditionalPatch struct {
	IfIdentifier *string
	Operator     *domain.Operator
	Value        *string
	EndFlow      *bool
	StopFlow     *bool
}

// InsertQuestionBefore creates a question and places it at index of the
// list addressed by path. index equal to the list length appends.
func (e *Editor) InsertQuestionBefore(ctx context.Context, path domain.Path, index int, draft domain.Question) (Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insertQuestionLocked(path, index, draft)
}

// AppendQuestion creates a question at the end of the list addressed by path.
func (e *Editor) AppendQuestion(ctx context.Context, path domain.Path, draft domain.Question) (Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insertQuestionLocked(path, -1, draft)
}

func (e *Editor) insertQuestionLocked(path domain.Path, index int, draft domain.Question) (Change, error) {
	if err := e.checkOpenLocked(); err != nil {
		return Change{Tree: e.tree}, err
	}
	depth := len(path)
	if depth > domain.MaxDepth {
		return Change{Tree: e.tree}, e.fail("insert question", domain.ErrMaxDepthExceeded, "path", path.String())
	}
	list, err := e.tree.List(path)
	if err != nil {
		return Change{Tree: e.tree}, e.fail("insert question", err, "path", path.String())
	}
	if index < 0 {
		index = len(list)
	}
	if index > len(list) {
		err := fmt.Errorf("%w: index %d beyond %d items at %s", domain.ErrInvalidPath, index, len(list), path)
		return Change{Tree: e.tree}, e.fail("insert question", err)
	}

	q, err := e.reg.Create(e.withDefaults(draft))
	if err != nil {
		return Change{Tree: e.tree}, err
	}
	node := domain.NewQuestionNode(domain.Unresolved(q.LocalID), depth)
	next, err := e.tree.ReplaceList(path, func(items []domain.LogicNode) ([]domain.LogicNode, error) {
		return insertAt(items, index, node), nil
	})
	if err != nil {
		e.reg.Remove(q.LocalID)
		return Change{Tree: e.tree}, e.fail("insert question", err)
	}

	e.tree = next
	e.startCreateLocked(q)
	e.saver.request()
	return Change{Tree: next, NodeID: node.NodeID, Question: q}, nil
}

// InsertConditionalAfter places a conditional block right after index in
// the list addressed by path (index -1 inserts at the front). The block is
// created with one nested question.
func (e *Editor) InsertConditionalAfter(ctx context.Context, path domain.Path, index int, draft ConditionalDraft) (Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpenLocked(); err != nil {
		return Change{Tree: e.tree}, err
	}
	depth := len(path)
	if depth+1 > domain.MaxDepth {
		return Change{Tree: e.tree}, e.fail("insert conditional", domain.ErrMaxDepthExceeded, "path", path.String())
	}
	list, err := e.tree.List(path)
	if err != nil {
		return Change{Tree: e.tree}, e.fail("insert conditional", err, "path", path.String())
	}
	if index < -1 || index >= len(list) {
		err := fmt.Errorf("%w: index %d outside %d items at %s", domain.ErrInvalidPath, index, len(list), path)
		return Change{Tree: e.tree}, e.fail("insert conditional", err)
	}

	ifIdentifier := draft.IfIdentifier
	if ifIdentifier == "" {
		ifIdentifier = e.precedingIdentifier(list, index)
	}
	op := draft.Operator
	if op == "" {
		op = domain.OpEquals
	}

	q, err := e.reg.Create(e.withDefaults(draft.Question))
	if err != nil {
		return Change{Tree: e.tree}, err
	}
	nested := domain.NewQuestionNode(domain.Unresolved(q.LocalID), depth+1)
	cond := domain.NewConditionalNode(domain.Conditional{
		IfIdentifier: ifIdentifier,
		Operator:     op,
		Value:        draft.Value,
		NestedItems:  []domain.LogicNode{nested},
		EndFlow:      draft.EndFlow,
		StopFlow:     draft.StopFlow,
	}, depth)

	next, err := e.tree.ReplaceList(path, func(items []domain.LogicNode) ([]domain.LogicNode, error) {
		return insertAt(items, index+1, cond), nil
	})
	if err != nil {
		e.reg.Remove(q.LocalID)
		return Change{Tree: e.tree}, e.fail("insert conditional", err)
	}

	e.tree = next
	e.startCreateLocked(q)
	e.saver.request()
	return Change{Tree: next, NodeID: cond.NodeID, Question: q}, nil
}

// precedingIdentifier finds the nearest question at or before index.
func (e *Editor) precedingIdentifier(list []domain.LogicNode, index int) string {
	for i := index; i >= 0; i-- {
		if !list[i].IsQuestion() {
			continue
		}
		if q, ok := e.reg.Resolve(list[i].Question); ok {
			return q.Identifier
		}
	}
	return ""
}

// RemoveNode removes a node and its subtree. Questions referenced only from
// the removed subtree are deleted as well.
func (e *Editor) RemoveNode(ctx context.Context, nodeID string) (Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpenLocked(); err != nil {
		return Change{Tree: e.tree}, err
	}
	node, path, idx, ok := e.tree.Find(nodeID)
	if !ok {
		return Change{Tree: e.tree}, e.fail("remove node", fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID))
	}
	next, err := e.tree.ReplaceList(path, func(items []domain.LogicNode) ([]domain.LogicNode, error) {
		return append(items[:idx], items[idx+1:]...), nil
	})
	if err != nil {
		return Change{Tree: e.tree}, e.fail("remove node", err)
	}

	remaining := make(map[string]bool)
	for _, ref := range next.QuestionRefs() {
		if q, ok := e.reg.Resolve(ref); ok {
			remaining[q.LocalID] = true
		}
	}

	e.tree = next
	for _, ref := range domain.NewTree(node).QuestionRefs() {
		q, ok := e.reg.Resolve(ref)
		if !ok || remaining[q.LocalID] {
			continue
		}
		e.dropQuestionLocked(q)
	}
	e.saver.request()
	return Change{Tree: next, NodeID: nodeID}, nil
}

func (e *Editor) dropQuestionLocked(q domain.Question) {
	e.autosave.Cancel(q.LocalID)
	e.reg.Remove(q.LocalID)
	delete(e.versions, q.LocalID)
	delete(e.statuses, q.LocalID)

	switch {
	case e.creating[q.LocalID]:
		e.tombstones[q.LocalID] = true
	case q.Saved():
		e.pending.add()
		go e.deleteRemote(q.ID, q.LocalID)
	}
}

// MoveNodeUpOneLevel moves a node out of its enclosing conditional to the
// position right after that conditional. Root nodes are left in place.
func (e *Editor) MoveNodeUpOneLevel(ctx context.Context, nodeID string) (Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpenLocked(); err != nil {
		return Change{Tree: e.tree}, err
	}
	node, path, idx, ok := e.tree.Find(nodeID)
	if !ok {
		return Change{Tree: e.tree}, e.fail("move node", fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID))
	}
	parentPath, parentID, ok := path.Parent()
	if !ok {
		return Change{Tree: e.tree, NodeID: nodeID}, nil
	}

	next, err := e.tree.ReplaceList(path, func(items []domain.LogicNode) ([]domain.LogicNode, error) {
		return append(items[:idx], items[idx+1:]...), nil
	})
	if err == nil {
		next, err = next.ReplaceList(parentPath, func(items []domain.LogicNode) ([]domain.LogicNode, error) {
			for i, n := range items {
				if n.NodeID == parentID {
					return insertAt(items, i+1, node.Shift(-1)), nil
				}
			}
			return nil, fmt.Errorf("%w: parent %s", domain.ErrNodeNotFound, parentID)
		})
	}
	if err != nil {
		return Change{Tree: e.tree}, e.fail("move node", err)
	}

	e.tree = next
	e.saver.request()
	return Change{Tree: next, NodeID: nodeID}, nil
}

// SetConditional edits the predicate or halting flags of a conditional block.
func (e *Editor) SetConditional(ctx context.Context, nodeID string, patch ConditionalPatch) (Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpenLocked(); err != nil {
		return Change{Tree: e.tree}, err
	}
	node, _, _, ok := e.tree.Find(nodeID)
	if !ok || !node.IsConditional() {
		return Change{Tree: e.tree}, e.fail("set conditional", fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID))
	}
	if patch.Operator != nil {
		if _, known := domain.ParseOperator(string(*patch.Operator)); !known {
			return Change{Tree: e.tree}, fmt.Errorf("unknown operator %q", *patch.Operator)
		}
	}

	e.tree = e.tree.Map(func(n domain.LogicNode) domain.LogicNode {
		if n.NodeID != nodeID {
			return n
		}
		c := *n.Cond
		if patch.IfIdentifier != nil {
			c.IfIdentifier = *patch.IfIdentifier
		}
		if patch.Operator != nil {
			c.Operator = *patch.Operator
		}
		if patch.Value != nil {
			c.Value = *patch.Value
		}
		if patch.EndFlow != nil {
			c.EndFlow = *patch.EndFlow
		}
		if patch.StopFlow != nil {
			c.StopFlow = *patch.StopFlow
		}
		n.Cond = &c
		return n
	})
	e.saver.request()
	return Change{Tree: e.tree, NodeID: nodeID}, nil
}

// SetQuestionStopFlow toggles halting right after a question node.
func (e *Editor) SetQuestionStopFlow(ctx context.Context, nodeID string, stop bool) (Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpenLocked(); err != nil {
		return Change{Tree: e.tree}, err
	}
	node, _, _, ok := e.tree.Find(nodeID)
	if !ok || !node.IsQuestion() {
		return Change{Tree: e.tree}, e.fail("set stop flow", fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID))
	}
	e.tree = e.tree.Map(func(n domain.LogicNode) domain.LogicNode {
		if n.NodeID == nodeID {
			n.StopFlow = stop
		}
		return n
	})
	e.saver.request()
	return Change{Tree: e.tree, NodeID: nodeID}, nil
}

// HealReport lists what a heal pass changed.
type HealReport struct {
	// Relinked are nodes whose local reference was replaced by a persisted id.
	Relinked []string
	// Dangling are nodes whose question could not be found.
	Dangling []string
	// Reattached are questions that no node referenced, now appended at the root.
	Reattached []string
}

// Changed reports whether the pass modified the tree.
func (r HealReport) Changed() bool {
	return len(r.Relinked) > 0 || len(r.Reattached) > 0
}

// HealDanglingReferences repairs the tree after a reload: local references
// whose create has completed are relinked to the persisted id, questions no
// node refers to are re-attached at the root, and references that resolve
// to nothing are reported and left in place.
func (e *Editor) HealDanglingReferences(ctx context.Context) (HealReport, error) {
	e.mu.Lock()

	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return HealReport{}, err
	}

	var report HealReport
	persisted := e.reg.LocalToPersisted()
	referenced := make(map[string]bool)

	next := e.tree.Map(func(n domain.LogicNode) domain.LogicNode {
		if !n.IsQuestion() {
			return n
		}
		if local, ok := n.Question.LocalID(); ok {
			if id, ok := persisted[local]; ok {
				n.Question = domain.Resolved(id)
				report.Relinked = append(report.Relinked, n.NodeID)
			}
		}
		if q, ok := e.reg.Resolve(n.Question); ok {
			referenced[q.LocalID] = true
		} else {
			report.Dangling = append(report.Dangling, n.NodeID)
		}
		return n
	})

	for _, q := range e.reg.All() {
		if referenced[q.LocalID] {
			continue
		}
		next.Items = append(next.Items, domain.NewQuestionNode(q.Ref(), 0))
		report.Reattached = append(report.Reattached, q.LocalID)
	}

	if report.Changed() {
		e.tree = next
	}
	e.mu.Unlock()

	for _, nodeID := range report.Dangling {
		e.logger.Warn("dangling question reference", "node_id", nodeID, "error", domain.ErrDanglingReference)
	}
	for _, local := range report.Reattached {
		e.logger.Warn("orphan question reattached at root", "local_id", local)
	}
	if report.Changed() {
		e.saver.request()
	}
	e.hooks.EmitHeal(ctx, &domain.HealEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventHeal, GroupID: e.groupID},
		Relinked:   len(report.Relinked),
		Dangling:   len(report.Dangling),
		Reattached: len(report.Reattached),
	})
	return report, nil
}

func insertAt(items []domain.LogicNode, index int, node domain.LogicNode) []domain.LogicNode {
	items = append(items, domain.LogicNode{})
	copy(items[index+1:], items[index:])
	items[index] = node
	return items
}

// withDefaults fills the fields an author has not typed yet.
func (e *Editor) withDefaults(draft domain.Question) domain.Question {
	if draft.Type == "" {
		draft.Type = domain.TypeFreeText
	}
	if draft.Text == "" {
		draft.Text = "New question"
	}
	if draft.Identifier == "" {
		for n := e.reg.Len() + 1; ; n++ {
			candidate := fmt.Sprintf("question_%d", n)
			if e.reg.IsLocallyUnique(candidate, "") {
				draft.Identifier = candidate
				break
			}
		}
	}
	return draft
}
