// Package registry holds the questions of a group being edited.
//
// The registry is the single source of truth for question content while the
// editor runs. Questions are addressed by their local id, which is assigned
// on creation and never changes; the persisted id is filled in exactly once
// when the backend acknowledges the create.
package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultCheckDebounce is how long an identifier must stay unchanged before
// the backend is asked about it.
const DefaultCheckDebounce = 500 * time.Millisecond

// Registry manages the questions of one group.
type Registry struct {
	mu        sync.RWMutex
	groupID   string
	namespace string
	order     []string
	questions map[string]domain.Question
	persisted map[string]string

	checker    ports.IdentifierChecker
	debounce   time.Duration
	flight     singleflight.Group
	generation map[string]uint64
	checking   map[string]string
	statuses   map[string]IdentifierStatus
	listeners  []func(identifier string, status IdentifierStatus)

	logger *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithChecker sets the backend consulted for identifier uniqueness.
func WithChecker(c ports.IdentifierChecker) Option {
	return func(r *Registry) {
		r.checker = c
	}
}

// WithCheckDebounce sets the quiet period before a remote identifier check.
func WithCheckDebounce(d time.Duration) Option {
	return func(r *Registry) {
		r.debounce = d
	}
}

// WithNamespace sets the group identifier used to qualify question identifiers.
func WithNamespace(ns string) Option {
	return func(r *Registry) {
		r.namespace = ns
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates an empty registry for a group.
func New(groupID string, opts ...Option) *Registry {
	r := &Registry{
		groupID:    groupID,
		questions:  make(map[string]domain.Question),
		persisted:  make(map[string]string),
		debounce:   DefaultCheckDebounce,
		generation: make(map[string]uint64),
		checking:   make(map[string]string),
		statuses:   make(map[string]IdentifierStatus),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GroupID returns the group the registry belongs to.
func (r *Registry) GroupID() string { return r.groupID }

// Namespace returns the group identifier used for qualified identifiers.
func (r *Registry) Namespace() string { return r.namespace }

// Load seeds the registry with questions read from the backend.
// Questions without a local id receive one.
func (r *Registry) Load(questions ...domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, q := range questions {
		if !r.isUniqueLocked(q.Identifier, "") {
			return &domain.IdentifierError{Identifier: q.Identifier, GroupID: r.groupID}
		}
		q = q.Clone()
		if q.LocalID == "" {
			q.LocalID = uuid.NewString()
		}
		r.insertLocked(q)
	}
	return nil
}

// Create validates a draft and registers it as a new unsaved question.
// Any id carried by the draft is discarded.
func (r *Registry) Create(draft domain.Question) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isUniqueLocked(draft.Identifier, "") {
		return domain.Question{}, &domain.IdentifierError{Identifier: draft.Identifier, GroupID: r.groupID}
	}
	if err := ValidateQuestion(draft); err != nil {
		return domain.Question{}, err
	}

	q := draft.Clone()
	q.ID = ""
	q.LocalID = uuid.NewString()
	r.insertLocked(q)

	r.logger.Debug("question created", "local_id", q.LocalID, "identifier", q.Identifier)
	return q.Clone(), nil
}

func (r *Registry) insertLocked(q domain.Question) {
	r.questions[q.LocalID] = q
	r.order = append(r.order, q.LocalID)
	if q.ID != "" {
		r.persisted[q.ID] = q.LocalID
	}
}

// Update applies a content patch. A new identifier must be unique within
// the group; the question is left unchanged otherwise.
func (r *Registry) Update(localID string, patch domain.QuestionPatch) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.questions[localID]
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, localID)
	}
	next := patch.Apply(q)
	if !strings.EqualFold(next.Identifier, q.Identifier) && !r.isUniqueLocked(next.Identifier, localID) {
		return q.Clone(), &domain.IdentifierError{Identifier: next.Identifier, GroupID: r.groupID}
	}
	r.questions[localID] = next
	return next.Clone(), nil
}

// Commit records the persisted id of a question. It succeeds once; a second
// commit with the same id is a no-op and a different id is rejected.
func (r *Registry) Commit(localID, persistedID string) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.questions[localID]
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, localID)
	}
	if q.ID != "" {
		if q.ID == persistedID {
			return q.Clone(), nil
		}
		return q.Clone(), fmt.Errorf("%w: %s has id %s", domain.ErrAlreadyCommitted, localID, q.ID)
	}
	if owner, taken := r.persisted[persistedID]; taken && owner != localID {
		return q.Clone(), fmt.Errorf("%w: id %s belongs to %s", domain.ErrAlreadyCommitted, persistedID, owner)
	}

	q.ID = persistedID
	r.questions[localID] = q
	r.persisted[persistedID] = localID
	return q.Clone(), nil
}

// Remove drops a question from the registry.
func (r *Registry) Remove(localID string) (domain.Question, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.questions[localID]
	if !ok {
		return domain.Question{}, false
	}
	delete(r.questions, localID)
	if q.ID != "" {
		delete(r.persisted, q.ID)
	}
	for i, id := range r.order {
		if id == localID {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return q, true
}

// Get returns a question by local id.
func (r *Registry) Get(localID string) (domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.questions[localID]
	return q.Clone(), ok
}

// ByID returns a question by persisted id.
func (r *Registry) ByID(id string) (domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	local, ok := r.persisted[id]
	if !ok {
		return domain.Question{}, false
	}
	return r.questions[local].Clone(), true
}

// Resolve returns the question a tree reference points at.
func (r *Registry) Resolve(ref domain.QuestionRef) (domain.Question, bool) {
	var (
		q  domain.Question
		ok bool
	)
	ref.Switch(
		func(local string) { q, ok = r.Get(local) },
		func(id string) { q, ok = r.ByID(id) },
	)
	return q, ok
}

// ByIdentifier finds a question by display or qualified identifier.
func (r *Registry) ByIdentifier(identifier string) (domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, local := range r.order {
		q := r.questions[local]
		if domain.SameIdentifier(q.Identifier, identifier) {
			return q.Clone(), true
		}
	}
	return domain.Question{}, false
}

// All returns every question in creation order.
func (r *Registry) All() []domain.Question {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Question, 0, len(r.order))
	for _, local := range r.order {
		out = append(out, r.questions[local].Clone())
	}
	return out
}

// Len returns the number of registered questions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// LocalToPersisted maps the local id of every committed question to its persisted id.
func (r *Registry) LocalToPersisted() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.persisted))
	for id, local := range r.persisted {
		out[local] = id
	}
	return out
}

// Identifier returns both forms of a question's identifier.
func (r *Registry) Identifier(q domain.Question) domain.Identifier {
	return domain.NewIdentifier(r.namespace, q.Identifier)
}
