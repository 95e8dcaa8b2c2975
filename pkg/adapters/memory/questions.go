package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

type storedQuestion struct {
	groupID string
	seq     int
	q       domain.Question
}

// QuestionStore implements ports.QuestionStore and ports.GroupLoader in memory.
// It is the backend used by tests and by the local CLI.
type QuestionStore struct {
	mu        sync.RWMutex
	next      int
	questions map[string]storedQuestion
	trees     map[string]json.RawMessage
	groups    map[string]domain.Group
}

// NewQuestionStore creates an empty question store.
func NewQuestionStore() *QuestionStore {
	return &QuestionStore{
		questions: make(map[string]storedQuestion),
		trees:     make(map[string]json.RawMessage),
		groups:    make(map[string]domain.Group),
	}
}

// PutGroup seeds a group, keeping the persisted ids its questions carry.
func (s *QuestionStore) PutGroup(g *domain.Group) error {
	tree, err := json.Marshal(g.Logic)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta := *g
	meta.Questions = nil
	meta.Logic = domain.Tree{}
	s.groups[g.ID] = meta
	for _, q := range g.Questions {
		if q.ID == "" {
			return fmt.Errorf("group %s: question %s has no id", g.ID, q.Identifier)
		}
		s.next++
		s.questions[q.ID] = storedQuestion{groupID: g.ID, seq: s.next, q: q.Clone()}
	}
	s.trees[g.ID] = tree
	return nil
}

// CreateQuestion stores a new question and assigns it a numeric id.
func (s *QuestionStore) CreateQuestion(ctx context.Context, groupID string, q domain.Question) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.uniqueLocked(q.Identifier, groupID, "") {
		return "", &domain.IdentifierError{Identifier: q.Identifier, GroupID: groupID}
	}
	s.next++
	id := strconv.Itoa(s.next)
	q = q.Clone()
	q.ID = id
	s.questions[id] = storedQuestion{groupID: groupID, seq: s.next, q: q}
	if _, ok := s.groups[groupID]; !ok {
		s.groups[groupID] = domain.Group{ID: groupID, Identifier: groupID, Name: groupID}
	}
	return id, nil
}

// UpdateQuestion applies a patch to a stored question.
func (s *QuestionStore) UpdateQuestion(ctx context.Context, id string, patch domain.QuestionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq, ok := s.questions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
	}
	next := patch.Apply(sq.q)
	if !s.uniqueLocked(next.Identifier, sq.groupID, id) {
		return &domain.IdentifierError{Identifier: next.Identifier, GroupID: sq.groupID}
	}
	sq.q = next
	s.questions[id] = sq
	return nil
}

// DeleteQuestion removes a stored question.
func (s *QuestionStore) DeleteQuestion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
	}
	delete(s.questions, id)
	return nil
}

// SaveLogicTree stores the serialized tree of a group.
func (s *QuestionStore) SaveLogicTree(ctx context.Context, groupID string, tree json.RawMessage) error {
	if !json.Valid(tree) {
		return fmt.Errorf("invalid logic tree for group %s", groupID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[groupID] = append(json.RawMessage(nil), tree...)
	return nil
}

// CheckIdentifierUnique compares identifiers case-insensitively within a group.
func (s *QuestionStore) CheckIdentifierUnique(ctx context.Context, identifier, groupID, excludingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uniqueLocked(identifier, groupID, excludingID), nil
}

func (s *QuestionStore) uniqueLocked(identifier, groupID, excludingID string) bool {
	for id, sq := range s.questions {
		if id == excludingID || sq.groupID != groupID {
			continue
		}
		if strings.EqualFold(domain.StripNamespace(sq.q.Identifier), domain.StripNamespace(identifier)) {
			return false
		}
	}
	return true
}

// Question returns a stored question by id.
func (s *QuestionStore) Question(id string) (domain.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sq, ok := s.questions[id]
	return sq.q.Clone(), ok
}

// Tree decodes the stored tree of a group.
func (s *QuestionStore) Tree(groupID string) (domain.Tree, error) {
	s.mu.RLock()
	raw, ok := s.trees[groupID]
	s.mu.RUnlock()

	var tree domain.Tree
	if !ok {
		return tree, nil
	}
	err := json.Unmarshal(raw, &tree)
	return tree, err
}

// LoadGroup assembles a group from its stored questions and tree.
func (s *QuestionStore) LoadGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	s.mu.RLock()
	meta, ok := s.groups[groupID]
	var stored []storedQuestion
	for _, sq := range s.questions {
		if sq.groupID == groupID {
			stored = append(stored, sq)
		}
	}
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })

	g := meta
	for _, sq := range stored {
		g.Questions = append(g.Questions, sq.q.Clone())
	}
	tree, err := s.Tree(groupID)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}
	g.Logic = tree.Normalize()
	return &g, nil
}

// ListGroups returns every known group id.
func (s *QuestionStore) ListGroups(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
