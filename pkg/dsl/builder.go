package dsl

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
)

// Builder manages the construction of a group.
type Builder struct {
	*Scope

	group     domain.Group
	root      []domain.LogicNode
	questions []*QuestionBuilder
	conds     int
	noLogic   bool
}

// Scope is a list of the logic tree that items can be appended to.
type Scope struct {
	builder *Builder
	items   *[]domain.LogicNode
	depth   int
}

// New creates a builder for a group. The id doubles as the group identifier.
func New(id string) *Builder {
	b := &Builder{
		group: domain.Group{ID: id, Identifier: id, Name: id},
	}
	b.Scope = &Scope{builder: b, items: &b.root}
	return b
}

// Named sets the display name of the group.
func (b *Builder) Named(name string) *Builder {
	b.group.Name = name
	return b
}

// Namespace overrides the identifier used to qualify answers.
func (b *Builder) Namespace(identifier string) *Builder {
	b.group.Identifier = identifier
	return b
}

// WithoutLogic drops the tree so the group shows all questions in order.
func (b *Builder) WithoutLogic() *Builder {
	b.noLogic = true
	return b
}

// Question declares a question and places it at the end of the scope.
func (s *Scope) Question(identifier string) *QuestionBuilder {
	b := s.builder
	qb := &QuestionBuilder{
		question: domain.Question{
			ID:         fmt.Sprintf("q%d", len(b.questions)+1),
			Text:       identifier,
			Type:       domain.TypeFreeText,
			Identifier: identifier,
		},
	}
	b.questions = append(b.questions, qb)
	*s.items = append(*s.items, domain.LogicNode{
		NodeID: "n-" + identifier,
		Kind:   domain.KindQuestion,
		Depth:  s.depth,
	})
	qb.scope = s
	qb.index = len(*s.items) - 1
	return qb
}

// If appends a conditional block to the scope.
func (s *Scope) If(identifier string, op domain.Operator, value string) *ConditionalBuilder {
	b := s.builder
	b.conds++
	cond := &domain.Conditional{IfIdentifier: identifier, Operator: op, Value: value}
	*s.items = append(*s.items, domain.LogicNode{
		NodeID: fmt.Sprintf("c%d", b.conds),
		Kind:   domain.KindConditional,
		Depth:  s.depth,
		Cond:   cond,
	})
	return &ConditionalBuilder{
		cond:  cond,
		scope: &Scope{builder: b, items: &cond.NestedItems, depth: s.depth + 1},
	}
}

// Group validates and returns the group.
func (b *Builder) Group() (*domain.Group, error) {
	g := b.group
	seen := make(map[string]bool)
	for _, qb := range b.questions {
		q := qb.question
		key := strings.ToLower(q.Identifier)
		if seen[key] {
			return nil, &domain.IdentifierError{Identifier: q.Identifier, GroupID: g.ID}
		}
		seen[key] = true
		if err := registry.ValidateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.Identifier, err)
		}
		g.Questions = append(g.Questions, q.Clone())
	}

	if !b.noLogic {
		g.Logic = b.tree()
		if err := g.Logic.CheckDepths(); err != nil {
			return nil, err
		}
	}
	return &g, nil
}

// tree fills in question refs now that every question is final.
func (b *Builder) tree() domain.Tree {
	refs := make(map[string]domain.QuestionRef, len(b.questions))
	for _, qb := range b.questions {
		refs["n-"+qb.question.Identifier] = qb.question.Ref()
	}
	return domain.NewTree(b.root...).Map(func(n domain.LogicNode) domain.LogicNode {
		if n.IsQuestion() {
			n.Question = refs[n.NodeID]
		}
		return n
	})
}

// Build compiles the group into a memory loader.
func (b *Builder) Build() (*memory.Loader, error) {
	g, err := b.Group()
	if err != nil {
		return nil, fmt.Errorf("failed to build group: %w", err)
	}
	return memory.NewLoader(g), nil
}
