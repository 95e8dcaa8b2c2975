package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
)

// Overlay contains evaluation data to highlight on the graph.
type Overlay struct {
	// Visible holds the node ids emitted by an evaluation.
	Visible []string
	// Current holds the node ids on the requested page.
	Current []string
}

// GenerateMermaid produces a Mermaid flowchart of a group's logic tree.
// It applies semantic styling:
// - Question: [/Parallelogram/]
// - Conditional: {Rhombus}
// - Halt (endFlow/stopFlow): edge into a terminal ((end)) node
func GenerateMermaid(g *domain.Group, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	src := flow.QuestionList(g.Questions)
	halts := false
	var walk func(items []domain.LogicNode)
	walk = func(items []domain.LogicNode) {
		for i, n := range items {
			id := sanitizeMermaidID(n.NodeID)
			switch {
			case n.IsConditional():
				fmt.Fprintf(&sb, "    %s{\"%s\"}\n", id, escape(conditionLabel(n.Cond)))
				for _, child := range n.Cond.NestedItems {
					fmt.Fprintf(&sb, "    %s -- \"true\" --> %s\n", id, sanitizeMermaidID(child.NodeID))
				}
				if n.Cond.EndFlow || n.Cond.StopFlow {
					halts = true
					fmt.Fprintf(&sb, "    %s -. \"%s\" .-> end_flow\n", id, haltLabel(n.Cond))
				}
				walk(n.Cond.NestedItems)
			default:
				fmt.Fprintf(&sb, "    %s[/\"%s\"/]\n", id, escape(questionLabel(src, n)))
				if n.StopFlow {
					halts = true
					fmt.Fprintf(&sb, "    %s -. \"stop\" .-> end_flow\n", id)
				}
			}
			if i+1 < len(items) {
				fmt.Fprintf(&sb, "    %s --> %s\n", id, sanitizeMermaidID(items[i+1].NodeID))
			}
		}
	}
	walk(g.EffectiveLogic().Items)

	if halts {
		sb.WriteString("    end_flow((\"end\"))\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visible fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		writeClass(&sb, overlay.Visible, "visible")
		writeClass(&sb, overlay.Current, "current")
	}
	return sb.String()
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		safe := sanitizeMermaidID(id)
		if safe == "" || seen[safe] {
			continue
		}
		seen[safe] = true
		fmt.Fprintf(sb, "    class %s %s;\n", safe, class)
	}
}

func questionLabel(src flow.Source, n domain.LogicNode) string {
	if q, ok := src.Resolve(n.Question); ok {
		return q.Identifier
	}
	return "missing " + n.Question.String()
}

func conditionLabel(c *domain.Conditional) string {
	op := c.Operator
	if op == "" {
		op = domain.OpEquals
	}
	return fmt.Sprintf("%s %s %s", domain.StripNamespace(c.IfIdentifier), op, c.Value)
}

func haltLabel(c *domain.Conditional) string {
	if c.StopFlow {
		return "stop"
	}
	return "end"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "n" + s
	}
	return s
}
