package domain

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// wireNode is the persisted shape of a logic node.
type wireNode struct {
	Type        string           `json:"type" yaml:"type" mapstructure:"type"`
	NodeID      string           `json:"nodeId,omitempty" yaml:"nodeId,omitempty" mapstructure:"nodeId"`
	QuestionID  string           `json:"questionId,omitempty" yaml:"questionId,omitempty" mapstructure:"questionId"`
	LocalID     string           `json:"localId,omitempty" yaml:"localId,omitempty" mapstructure:"localId"`
	Depth       int              `json:"depth" yaml:"depth" mapstructure:"depth"`
	StopFlow    bool             `json:"stopFlow,omitempty" yaml:"stopFlow,omitempty" mapstructure:"stopFlow"`
	Conditional *wireConditional `json:"conditional,omitempty" yaml:"conditional,omitempty" mapstructure:"conditional"`
}

type wireConditional struct {
	IfIdentifier string     `json:"ifIdentifier" yaml:"ifIdentifier" mapstructure:"ifIdentifier"`
	Operator     string     `json:"operator" yaml:"operator" mapstructure:"operator"`
	Value        string     `json:"value" yaml:"value" mapstructure:"value"`
	NestedItems  []wireNode `json:"nestedItems" yaml:"nestedItems" mapstructure:"nestedItems"`
	EndFlow      bool       `json:"endFlow,omitempty" yaml:"endFlow,omitempty" mapstructure:"endFlow"`
	StopFlow     bool       `json:"stopFlow,omitempty" yaml:"stopFlow,omitempty" mapstructure:"stopFlow"`
}

func toWire(items []LogicNode) []wireNode {
	out := make([]wireNode, 0, len(items))
	for _, n := range items {
		w := wireNode{
			Type:     string(n.Kind),
			NodeID:   n.NodeID,
			Depth:    n.Depth,
			StopFlow: n.StopFlow,
		}
		if n.IsQuestion() {
			n.Question.Switch(
				func(local string) { w.LocalID = local },
				func(id string) { w.QuestionID = id },
			)
		}
		if n.Cond != nil {
			w.Conditional = &wireConditional{
				IfIdentifier: n.Cond.IfIdentifier,
				Operator:     string(n.Cond.Operator),
				Value:        n.Cond.Value,
				NestedItems:  toWire(n.Cond.NestedItems),
				EndFlow:      n.Cond.EndFlow,
				StopFlow:     n.Cond.StopFlow,
			}
		}
		out = append(out, w)
	}
	return out
}

func fromWire(items []wireNode) ([]LogicNode, error) {
	out := make([]LogicNode, 0, len(items))
	for i, w := range items {
		n := LogicNode{
			NodeID:   w.NodeID,
			Kind:     NodeKind(w.Type),
			Depth:    w.Depth,
			StopFlow: w.StopFlow,
		}
		switch n.Kind {
		case KindQuestion:
			switch {
			case w.QuestionID != "":
				n.Question = Resolved(w.QuestionID)
			case w.LocalID != "":
				n.Question = Unresolved(w.LocalID)
			}
		case KindConditional:
			if w.Conditional == nil {
				return nil, fmt.Errorf("item %d: conditional without body", i)
			}
			op, _ := ParseOperator(w.Conditional.Operator)
			nested, err := fromWire(w.Conditional.NestedItems)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			n.Cond = &Conditional{
				IfIdentifier: w.Conditional.IfIdentifier,
				Operator:     op,
				Value:        w.Conditional.Value,
				NestedItems:  nested,
				EndFlow:      w.Conditional.EndFlow,
				StopFlow:     w.Conditional.StopFlow,
			}
		default:
			return nil, fmt.Errorf("item %d: unknown node type %q", i, w.Type)
		}
		out = append(out, n)
	}
	return out, nil
}

// MarshalJSON encodes the tree as its persisted list of items.
func (t Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(t.Items))
}

// UnmarshalJSON decodes a persisted list of items.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := DecodeTree(raw)
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}

// MarshalYAML encodes the tree in the same shape as JSON.
func (t Tree) MarshalYAML() (any, error) {
	return toWire(t.Items), nil
}

// DecodeTree builds a tree from generic data, such as YAML frontmatter or
// decoded JSON. Numeric question ids are accepted and read as strings.
// A nil input yields an empty tree.
func DecodeTree(raw any) (Tree, error) {
	if raw == nil {
		return Tree{}, nil
	}
	var items []wireNode
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &items,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Tree{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Tree{}, fmt.Errorf("failed to decode logic tree: %w", err)
	}
	nodes, err := fromWire(items)
	if err != nil {
		return Tree{}, fmt.Errorf("failed to decode logic tree: %w", err)
	}
	return Tree{Items: nodes}, nil
}

// EncodeTree returns the persisted form as generic data.
func EncodeTree(t Tree) ([]any, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var out []any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
