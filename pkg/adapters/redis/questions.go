package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultQuestionPrefix is the key prefix of question bank entries.
const DefaultQuestionPrefix = "arbor:bank:"

// Key layout under the prefix:
//
//	seq                       INCR counter for question ids
//	groups                    SET of group ids
//	group:<g>                 group metadata (JSON, no questions or logic)
//	group:<g>:questions       ZSET of question ids scored by creation order
//	group:<g>:identifiers     HASH folded identifier -> question id
//	group:<g>:logic           serialized logic tree
//	question:<id>             question record (JSON)
type QuestionStore struct {
	client backend.UniversalClient
	prefix string
}

// QuestionOption configures the QuestionStore.
type QuestionOption func(*QuestionStore)

// WithQuestionPrefix sets the key prefix.
func WithQuestionPrefix(prefix string) QuestionOption {
	return func(s *QuestionStore) {
		s.prefix = prefix
	}
}

// NewQuestionStore creates a question bank backed by client.
// It implements ports.QuestionStore and ports.GroupLoader.
func NewQuestionStore(client backend.UniversalClient, opts ...QuestionOption) *QuestionStore {
	s := &QuestionStore{client: client, prefix: DefaultQuestionPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type questionRecord struct {
	GroupID  string          `json:"group_id"`
	Question domain.Question `json:"question"`
}

func (s *QuestionStore) seqKey() string               { return s.prefix + "seq" }
func (s *QuestionStore) groupsKey() string            { return s.prefix + "groups" }
func (s *QuestionStore) groupKey(g string) string     { return s.prefix + "group:" + g }
func (s *QuestionStore) membersKey(g string) string   { return s.groupKey(g) + ":questions" }
func (s *QuestionStore) identsKey(g string) string    { return s.groupKey(g) + ":identifiers" }
func (s *QuestionStore) logicKey(g string) string     { return s.groupKey(g) + ":logic" }
func (s *QuestionStore) questionKey(id string) string { return s.prefix + "question:" + id }

func fold(identifier string) string {
	return strings.ToLower(domain.StripNamespace(identifier))
}

// PutGroup seeds a group, keeping the persisted ids its questions carry.
func (s *QuestionStore) PutGroup(ctx context.Context, g *domain.Group) error {
	meta := *g
	meta.Questions = nil
	meta.Logic = domain.Tree{}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal group: %w", err)
	}
	tree, err := json.Marshal(g.Logic)
	if err != nil {
		return fmt.Errorf("failed to marshal logic tree: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.groupsKey(), g.ID)
	pipe.Set(ctx, s.groupKey(g.ID), metaData, 0)
	pipe.Set(ctx, s.logicKey(g.ID), tree, 0)
	for i, q := range g.Questions {
		if q.ID == "" {
			return fmt.Errorf("group %s: question %s has no id", g.ID, q.Identifier)
		}
		data, err := json.Marshal(questionRecord{GroupID: g.ID, Question: q})
		if err != nil {
			return fmt.Errorf("failed to marshal question %s: %w", q.ID, err)
		}
		pipe.Set(ctx, s.questionKey(q.ID), data, 0)
		pipe.ZAdd(ctx, s.membersKey(g.ID), backend.Z{Score: float64(i), Member: q.ID})
		pipe.HSet(ctx, s.identsKey(g.ID), fold(q.Identifier), q.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed group %s: %w", g.ID, err)
	}
	return nil
}

// CreateQuestion stores a new question and assigns it a numeric id.
// The identifier is claimed with HSETNX so concurrent creates cannot both win.
func (s *QuestionStore) CreateQuestion(ctx context.Context, groupID string, q domain.Question) (string, error) {
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return "", fmt.Errorf("failed to allocate question id: %w", err)
	}
	id := strconv.FormatInt(seq, 10)

	claimed, err := s.client.HSetNX(ctx, s.identsKey(groupID), fold(q.Identifier), id).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim identifier: %w", err)
	}
	if !claimed {
		return "", &domain.IdentifierError{Identifier: q.Identifier, GroupID: groupID}
	}

	q = q.Clone()
	q.ID = id
	data, err := json.Marshal(questionRecord{GroupID: groupID, Question: q})
	if err != nil {
		s.client.HDel(ctx, s.identsKey(groupID), fold(q.Identifier))
		return "", fmt.Errorf("failed to marshal question: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.questionKey(id), data, 0)
	pipe.ZAdd(ctx, s.membersKey(groupID), backend.Z{Score: float64(seq), Member: id})
	s.ensureGroup(ctx, pipe, groupID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store question: %w", err)
	}
	return id, nil
}

func (s *QuestionStore) load(ctx context.Context, id string) (questionRecord, error) {
	var rec questionRecord
	data, err := s.client.Get(ctx, s.questionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return rec, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
		}
		return rec, fmt.Errorf("failed to load question %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to unmarshal question %s: %w", id, err)
	}
	return rec, nil
}

// ensureGroup registers a group that was never seeded, named after its id.
func (s *QuestionStore) ensureGroup(ctx context.Context, pipe backend.Pipeliner, groupID string) {
	meta, _ := json.Marshal(domain.Group{ID: groupID, Identifier: groupID, Name: groupID})
	pipe.SAdd(ctx, s.groupsKey(), groupID)
	pipe.SetNX(ctx, s.groupKey(groupID), meta, 0)
}

// UpdateQuestion applies a patch to a stored question.
func (s *QuestionStore) UpdateQuestion(ctx context.Context, id string, patch domain.QuestionPatch) error {
	rec, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	prev := fold(rec.Question.Identifier)
	rec.Question = patch.Apply(rec.Question)
	next := fold(rec.Question.Identifier)

	idents := s.identsKey(rec.GroupID)
	if next != prev {
		claimed, err := s.client.HSetNX(ctx, idents, next, id).Result()
		if err != nil {
			return fmt.Errorf("failed to claim identifier: %w", err)
		}
		if !claimed {
			return &domain.IdentifierError{Identifier: rec.Question.Identifier, GroupID: rec.GroupID}
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal question: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.questionKey(id), data, 0)
	if next != prev {
		pipe.HDel(ctx, idents, prev)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update question %s: %w", id, err)
	}
	return nil
}

// DeleteQuestion removes a stored question and releases its identifier.
func (s *QuestionStore) DeleteQuestion(ctx context.Context, id string) error {
	rec, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.questionKey(id))
	pipe.ZRem(ctx, s.membersKey(rec.GroupID), id)
	pipe.HDel(ctx, s.identsKey(rec.GroupID), fold(rec.Question.Identifier))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete question %s: %w", id, err)
	}
	return nil
}

// SaveLogicTree stores the serialized tree of a group.
func (s *QuestionStore) SaveLogicTree(ctx context.Context, groupID string, tree json.RawMessage) error {
	if !json.Valid(tree) {
		return fmt.Errorf("invalid logic tree for group %s", groupID)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.logicKey(groupID), []byte(tree), 0)
	s.ensureGroup(ctx, pipe, groupID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save logic tree for group %s: %w", groupID, err)
	}
	return nil
}

// CheckIdentifierUnique compares identifiers case-insensitively within a group.
func (s *QuestionStore) CheckIdentifierUnique(ctx context.Context, identifier, groupID, excludingID string) (bool, error) {
	owner, err := s.client.HGet(ctx, s.identsKey(groupID), fold(identifier)).Result()
	if errors.Is(err, backend.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check identifier: %w", err)
	}
	return owner == excludingID, nil
}

// Question returns a stored question by id.
func (s *QuestionStore) Question(ctx context.Context, id string) (domain.Question, bool) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return domain.Question{}, false
	}
	return rec.Question, true
}

// LoadGroup assembles a group from its stored questions and tree.
func (s *QuestionStore) LoadGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	metaData, err := s.client.Get(ctx, s.groupKey(groupID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", groupID, err)
	}

	var g domain.Group
	if err := json.Unmarshal(metaData, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal group %s: %w", groupID, err)
	}

	ids, err := s.client.ZRange(ctx, s.membersKey(groupID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list questions of group %s: %w", groupID, err)
	}
	g.Questions = nil
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = s.questionKey(id)
		}
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load questions of group %s: %w", groupID, err)
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				// Deleted between ZRANGE and MGET.
				continue
			}
			var rec questionRecord
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal question %s: %w", ids[i], err)
			}
			g.Questions = append(g.Questions, rec.Question)
		}
	}

	g.Logic = domain.Tree{}
	raw, err := s.client.Get(ctx, s.logicKey(groupID)).Bytes()
	switch {
	case errors.Is(err, backend.Nil):
	case err != nil:
		return nil, fmt.Errorf("failed to load logic tree of group %s: %w", groupID, err)
	default:
		if err := json.Unmarshal(raw, &g.Logic); err != nil {
			return nil, fmt.Errorf("group %s: %w", groupID, err)
		}
	}
	g.Logic = g.Logic.Normalize()
	return &g, nil
}

// ListGroups returns every known group id in lexical order.
func (s *QuestionStore) ListGroups(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.groupsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
