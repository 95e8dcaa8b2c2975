package domain

import "github.com/google/uuid"

// NodeKind distinguishes the two kinds of logic tree items.
type NodeKind string

const (
	KindQuestion    NodeKind = "question"
	KindConditional NodeKind = "conditional"
)

// Operator is the comparison applied by a conditional block.
type Operator string

const (
	OpEquals           Operator = "equals"
	OpNotEquals        Operator = "not_equals"
	OpCountEquals      Operator = "count_equals"
	OpCountGreaterThan Operator = "count_greater_than"
	OpCountLessThan    Operator = "count_less_than"
)

// Operators lists every supported operator.
var Operators = []Operator{OpEquals, OpNotEquals, OpCountEquals, OpCountGreaterThan, OpCountLessThan}

// ParseOperator maps a stored operator to its constant.
// An empty string is read as equals, which is what legacy trees carry.
func ParseOperator(s string) (Operator, bool) {
	if s == "" {
		return OpEquals, true
	}
	for _, op := range Operators {
		if string(op) == s {
			return op, true
		}
	}
	return Operator(s), false
}

// IsCount reports whether the operator compares the number of answers.
func (op Operator) IsCount() bool {
	return op == OpCountEquals || op == OpCountGreaterThan || op == OpCountLessThan
}

// Conditional gates its nested items on a single answer.
type Conditional struct {
	IfIdentifier string      `json:"ifIdentifier"`
	Operator     Operator    `json:"operator"`
	Value        string      `json:"value"`
	NestedItems  []LogicNode `json:"nestedItems"`
	// EndFlow halts evaluation after the nested items when the condition holds.
	EndFlow bool `json:"endFlow,omitempty"`
	// StopFlow, like EndFlow, halts evaluation after the nested items when
	// the condition holds.
	StopFlow bool `json:"stopFlow,omitempty"`
}

// LogicNode is a single item of the logic tree.
//
// NodeID is stable for the lifetime of the node and is what paths and
// mutations address. Depth equals the number of conditional ancestors.
type LogicNode struct {
	NodeID   string
	Kind     NodeKind
	Depth    int
	Question QuestionRef
	// StopFlow on a question node halts evaluation right after the question.
	StopFlow bool
	Cond     *Conditional
}

// NewNodeID returns a fresh node identity.
func NewNodeID() string { return uuid.NewString() }

// NewQuestionNode creates a question node at the given depth.
func NewQuestionNode(ref QuestionRef, depth int) LogicNode {
	return LogicNode{NodeID: NewNodeID(), Kind: KindQuestion, Depth: depth, Question: ref}
}

// NewConditionalNode creates a conditional node at the given depth.
func NewConditionalNode(cond Conditional, depth int) LogicNode {
	return LogicNode{NodeID: NewNodeID(), Kind: KindConditional, Depth: depth, Cond: &cond}
}

// IsQuestion reports whether the node renders a question.
func (n LogicNode) IsQuestion() bool { return n.Kind == KindQuestion }

// IsConditional reports whether the node is a conditional block.
func (n LogicNode) IsConditional() bool { return n.Kind == KindConditional && n.Cond != nil }

// Children returns the nested items of a conditional node.
func (n LogicNode) Children() []LogicNode {
	if n.Cond == nil {
		return nil
	}
	return n.Cond.NestedItems
}

// Clone returns a deep copy of the node and its subtree.
func (n LogicNode) Clone() LogicNode {
	if n.Cond != nil {
		c := *n.Cond
		c.NestedItems = cloneNodes(n.Cond.NestedItems)
		n.Cond = &c
	}
	return n
}

func cloneNodes(nodes []LogicNode) []LogicNode {
	if nodes == nil {
		return nil
	}
	out := make([]LogicNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// withChildren returns a shallow copy of a conditional with new nested items.
func (n LogicNode) withChildren(children []LogicNode) LogicNode {
	c := *n.Cond
	c.NestedItems = children
	n.Cond = &c
	return n
}

// Shift returns a copy of the subtree with every depth moved by delta.
func (n LogicNode) Shift(delta int) LogicNode {
	n.Depth += delta
	if n.Cond != nil {
		children := make([]LogicNode, len(n.Cond.NestedItems))
		for i, child := range n.Cond.NestedItems {
			children[i] = child.Shift(delta)
		}
		n = n.withChildren(children)
	}
	return n
}
