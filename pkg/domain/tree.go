package domain

import (
	"fmt"
	"strings"
)

// MaxDepth is the deepest level a node may sit at. Root items are at depth 0.
const MaxDepth = 4

// Path addresses a list in the tree by the node ids of its conditional
// ancestors, outermost first. The empty path is the root list.
//
// Node ids do not move when siblings are inserted or removed, so a path
// captured before an edit still addresses the same list afterwards.
type Path []string

// Child extends the path into the nested items of a conditional.
func (p Path) Child(conditionalID string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = conditionalID
	return out
}

// Parent splits the path into the enclosing path and the owning conditional.
func (p Path) Parent() (Path, string, bool) {
	if len(p) == 0 {
		return nil, "", false
	}
	return p[: len(p)-1 : len(p)-1], p[len(p)-1], true
}

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	return "/" + strings.Join(p, "/")
}

// Tree is the ordered, nested logic of a group.
//
// Trees are values: every mutation returns a new Tree and leaves the
// receiver untouched. Unchanged subtrees are shared between versions.
type Tree struct {
	Items []LogicNode
}

// NewTree returns a tree holding the given root items.
func NewTree(items ...LogicNode) Tree {
	return Tree{Items: items}
}

// TreeFromQuestions lays questions out in order at the root, the layout
// used for groups that carry no logic.
func TreeFromQuestions(questions []Question) Tree {
	items := make([]LogicNode, 0, len(questions))
	for _, q := range questions {
		ref := q.Ref()
		items = append(items, LogicNode{
			NodeID:   "auto-" + ref.Key(),
			Kind:     KindQuestion,
			Question: ref,
		})
	}
	return Tree{Items: items}
}

// IsEmpty reports whether the tree has no items.
func (t Tree) IsEmpty() bool { return len(t.Items) == 0 }

// Walk visits every node in pre-order. fn receives the path of the list
// holding the node and the node's index in it. Returning false stops the walk.
func (t Tree) Walk(fn func(n LogicNode, path Path, index int) bool) {
	walkNodes(t.Items, nil, fn)
}

func walkNodes(items []LogicNode, path Path, fn func(LogicNode, Path, int) bool) bool {
	for i, n := range items {
		if !fn(n, path, i) {
			return false
		}
		if n.IsConditional() {
			if !walkNodes(n.Cond.NestedItems, path.Child(n.NodeID), fn) {
				return false
			}
		}
	}
	return true
}

// Count returns the number of nodes in the tree.
func (t Tree) Count() int {
	n := 0
	t.Walk(func(LogicNode, Path, int) bool {
		n++
		return true
	})
	return n
}

// Find locates a node by id, returning its containing path and index.
func (t Tree) Find(nodeID string) (LogicNode, Path, int, bool) {
	var (
		found LogicNode
		at    Path
		idx   int
		ok    bool
	)
	t.Walk(func(n LogicNode, path Path, i int) bool {
		if n.NodeID == nodeID {
			found, at, idx, ok = n, path, i, true
			return false
		}
		return true
	})
	return found, at, idx, ok
}

// List returns the items addressed by path.
func (t Tree) List(path Path) ([]LogicNode, error) {
	items := t.Items
	for _, id := range path {
		next, ok := findConditional(items, id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
		}
		items = next.Cond.NestedItems
	}
	return items, nil
}

func findConditional(items []LogicNode, id string) (LogicNode, bool) {
	for _, n := range items {
		if n.NodeID == id && n.IsConditional() {
			return n, true
		}
	}
	return LogicNode{}, false
}

// ReplaceList returns a new tree in which the list at path is replaced by
// the result of fn. fn receives a private copy of the list.
func (t Tree) ReplaceList(path Path, fn func([]LogicNode) ([]LogicNode, error)) (Tree, error) {
	items, err := replaceList(t.Items, path, path, fn)
	if err != nil {
		return t, err
	}
	return Tree{Items: items}, nil
}

func replaceList(items []LogicNode, rest, full Path, fn func([]LogicNode) ([]LogicNode, error)) ([]LogicNode, error) {
	if len(rest) == 0 {
		return fn(append([]LogicNode(nil), items...))
	}
	for i, n := range items {
		if n.NodeID != rest[0] {
			continue
		}
		if !n.IsConditional() {
			return nil, fmt.Errorf("%w: %s is not a conditional", ErrInvalidPath, n.NodeID)
		}
		children, err := replaceList(n.Cond.NestedItems, rest[1:], full, fn)
		if err != nil {
			return nil, err
		}
		out := append([]LogicNode(nil), items...)
		out[i] = n.withChildren(children)
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidPath, full)
}

// Map rewrites every node bottom-up. fn sees each node after its children
// have been rewritten.
func (t Tree) Map(fn func(LogicNode) LogicNode) Tree {
	return Tree{Items: mapNodes(t.Items, fn)}
}

func mapNodes(items []LogicNode, fn func(LogicNode) LogicNode) []LogicNode {
	if items == nil {
		return nil
	}
	out := make([]LogicNode, len(items))
	for i, n := range items {
		if n.IsConditional() {
			n = n.withChildren(mapNodes(n.Cond.NestedItems, fn))
		}
		out[i] = fn(n)
	}
	return out
}

// Clone returns a deep copy of the tree.
func (t Tree) Clone() Tree {
	return Tree{Items: cloneNodes(t.Items)}
}

// Normalize recomputes depths from nesting and assigns ids to nodes that
// arrived without one.
func (t Tree) Normalize() Tree {
	return Tree{Items: normalizeNodes(t.Items, 0)}
}

func normalizeNodes(items []LogicNode, depth int) []LogicNode {
	if items == nil {
		return nil
	}
	out := make([]LogicNode, len(items))
	for i, n := range items {
		n.Depth = depth
		if n.NodeID == "" {
			n.NodeID = NewNodeID()
		}
		if n.IsConditional() {
			n = n.withChildren(normalizeNodes(n.Cond.NestedItems, depth+1))
		}
		out[i] = n
	}
	return out
}

// CheckDepths verifies that every node's depth matches its nesting and
// that nothing sits deeper than MaxDepth.
func (t Tree) CheckDepths() error {
	var err error
	t.Walk(func(n LogicNode, path Path, _ int) bool {
		switch {
		case n.Depth != len(path):
			err = fmt.Errorf("node %s: depth %d, nested %d levels deep", n.NodeID, n.Depth, len(path))
		case n.Depth > MaxDepth:
			err = fmt.Errorf("node %s: %w", n.NodeID, ErrMaxDepthExceeded)
		}
		return err == nil
	})
	return err
}

// QuestionRefs returns the question references in pre-order.
func (t Tree) QuestionRefs() []QuestionRef {
	var refs []QuestionRef
	t.Walk(func(n LogicNode, _ Path, _ int) bool {
		if n.IsQuestion() {
			refs = append(refs, n.Question)
		}
		return true
	})
	return refs
}

// FlatNode is a node in flattened order with the id of the list owner.
type FlatNode struct {
	Node LogicNode
	// Parent is the id of the enclosing conditional, empty at the root.
	Parent string
	Index  int
}

// Flatten lists every node in pre-order.
func (t Tree) Flatten() []FlatNode {
	var out []FlatNode
	t.Walk(func(n LogicNode, path Path, i int) bool {
		parent := ""
		if len(path) > 0 {
			parent = path[len(path)-1]
		}
		out = append(out, FlatNode{Node: n, Parent: parent, Index: i})
		return true
	})
	return out
}

// Equal reports whether two trees are structurally identical.
// Nil and empty lists compare equal.
func (t Tree) Equal(other Tree) bool {
	return nodesEqual(t.Items, other.Items)
}

func nodesEqual(a, b []LogicNode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.NodeID != y.NodeID || x.Kind != y.Kind || x.Depth != y.Depth ||
			x.Question != y.Question || x.StopFlow != y.StopFlow {
			return false
		}
		if (x.Cond == nil) != (y.Cond == nil) {
			return false
		}
		if x.Cond == nil {
			continue
		}
		cx, cy := x.Cond, y.Cond
		if cx.IfIdentifier != cy.IfIdentifier || cx.Operator != cy.Operator ||
			cx.Value != cy.Value || cx.EndFlow != cy.EndFlow || cx.StopFlow != cy.StopFlow {
			return false
		}
		if !nodesEqual(cx.NestedItems, cy.NestedItems) {
			return false
		}
	}
	return true
}
