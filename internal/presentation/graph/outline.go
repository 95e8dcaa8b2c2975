package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
)

// Style decorates outline fragments. Nil functions leave text unchanged.
type Style struct {
	Question    func(string) string
	Conditional func(string) string
	Halt        func(string) string
	Muted       func(string) string
}

func apply(fn func(string) string, s string) string {
	if fn == nil {
		return s
	}
	return fn(s)
}

// Outline renders the logic tree of a group as an indented list, one node
// per line, two spaces per depth level.
func Outline(g *domain.Group, style Style) string {
	var sb strings.Builder
	src := flow.QuestionList(g.Questions)

	var walk func(items []domain.LogicNode)
	walk = func(items []domain.LogicNode) {
		for _, n := range items {
			indent := strings.Repeat("  ", n.Depth)
			if n.IsConditional() {
				line := "if " + conditionLabel(n.Cond)
				fmt.Fprintf(&sb, "%s%s", indent, apply(style.Conditional, line))
				if n.Cond.StopFlow {
					sb.WriteString(" " + apply(style.Halt, "[stop]"))
				} else if n.Cond.EndFlow {
					sb.WriteString(" " + apply(style.Halt, "[end]"))
				}
				sb.WriteString("\n")
				walk(n.Cond.NestedItems)
				continue
			}

			q, ok := src.Resolve(n.Question)
			if !ok {
				fmt.Fprintf(&sb, "%s%s\n", indent, apply(style.Halt, "? "+n.Question.String()))
				continue
			}
			fmt.Fprintf(&sb, "%s- %s %s", indent, apply(style.Question, q.Identifier), apply(style.Muted, "("+string(q.Type)+")"))
			if q.Required {
				sb.WriteString(" *")
			}
			if q.Repeatable {
				sb.WriteString(" " + apply(style.Muted, "[repeatable]"))
			}
			if n.StopFlow {
				sb.WriteString(" " + apply(style.Halt, "[stop]"))
			}
			sb.WriteString("\n")
		}
	}
	walk(g.EffectiveLogic().Items)
	return sb.String()
}
