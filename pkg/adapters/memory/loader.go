package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.GroupLoader over a fixed set of groups.
type Loader struct {
	mu     sync.RWMutex
	groups map[string]*domain.Group
}

// NewLoader creates a loader holding the given groups.
func NewLoader(groups ...*domain.Group) *Loader {
	l := &Loader{groups: make(map[string]*domain.Group)}
	for _, g := range groups {
		l.Put(g)
	}
	return l
}

// Put adds or replaces a group.
func (l *Loader) Put(g *domain.Group) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.groups[g.ID] = cloneGroup(g)
}

// LoadGroup returns a copy of the group.
func (l *Loader) LoadGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
	}
	return cloneGroup(g), nil
}

// ListGroups returns all group ids.
func (l *Loader) ListGroups(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.groups))
	for k := range l.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}

func cloneGroup(g *domain.Group) *domain.Group {
	out := *g
	out.Questions = make([]domain.Question, len(g.Questions))
	for i, q := range g.Questions {
		out.Questions[i] = q.Clone()
	}
	out.Logic = g.Logic.Clone()
	return &out
}
