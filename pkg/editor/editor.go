package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/debounce"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/repeat"
)

// DefaultContentDebounce is the quiet period before a content edit is saved.
const DefaultContentDebounce = time.Second

// ErrClosed is returned by edits made after Close.
var ErrClosed = errors.New("editor closed")

// Editor owns the logic tree of one group while it is being edited.
// It is safe for concurrent use.
type Editor struct {
	mu      sync.Mutex
	groupID string
	tree    domain.Tree
	reg     *registry.Registry
	store   ports.QuestionStore
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	ctx     context.Context
	delay   time.Duration

	autosave *debounce.Keyed
	saver    *treeSaver
	pending  *tracker

	creating   map[string]bool
	checks     map[string]uint64
	checkSeq   uint64
	tombstones map[string]bool
	versions   map[string]uint64
	statuses   map[string]SaveStatus
	treeErr    error
	treeSaves  int
	closed     bool
}

// Option configures the Editor.
type Option func(*Editor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// WithLifecycleHooks sets callbacks reporting every backend write.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(e *Editor) {
		e.hooks = h
	}
}

// WithContentDebounce sets the quiet period before content edits are saved.
func WithContentDebounce(d time.Duration) Option {
	return func(e *Editor) {
		e.delay = d
	}
}

// WithContext sets the context background writes run under.
// Cancellation is ignored; only values are kept.
func WithContext(ctx context.Context) Option {
	return func(e *Editor) {
		e.ctx = ctx
	}
}

// New creates an editor over tree. The registry must already hold every
// question the tree refers to.
func New(reg *registry.Registry, store ports.QuestionStore, tree domain.Tree, opts ...Option) *Editor {
	e := &Editor{
		groupID:    reg.GroupID(),
		tree:       tree.Normalize(),
		reg:        reg,
		store:      store,
		logger:     logging.NewNop(),
		ctx:        context.Background(),
		delay:      DefaultContentDebounce,
		pending:    newTracker(),
		creating:   make(map[string]bool),
		checks:     make(map[string]uint64),
		tombstones: make(map[string]bool),
		versions:   make(map[string]uint64),
		statuses:   make(map[string]SaveStatus),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx = context.WithoutCancel(e.ctx)
	e.autosave = debounce.NewKeyed(e.delay, e.flushContent)
	e.saver = newTreeSaver(e.Tree, e.saveTree)
	reg.Subscribe(e.onIdentifierStatus)
	return e
}

// Tree returns the current tree snapshot.
func (e *Editor) Tree() domain.Tree {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree
}

// Registry returns the question registry backing the editor.
func (e *Editor) Registry() *registry.Registry { return e.reg }

// Sets returns the repeatable sets of the current tree.
func (e *Editor) Sets() []repeat.Set {
	return repeat.ResolveSets(repeat.ItemsFromTree(e.Tree(), e.reg))
}

// SaveStatus returns the persistence state of a question.
func (e *Editor) SaveStatus(localID string) SaveStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statuses[localID]
}

// TreeError returns the error of the last tree save, if it failed.
func (e *Editor) TreeError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.treeErr
}

// TreeSaves returns the number of tree saves dispatched so far.
func (e *Editor) TreeSaves() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.treeSaves
}

// UpdateQuestion applies a content edit locally and schedules a debounced save.
// A new identifier is checked against the backend in the background; the
// save waits for the answer and is blocked if the identifier is taken.
func (e *Editor) UpdateQuestion(ctx context.Context, localID string, patch domain.QuestionPatch) (domain.Question, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return domain.Question{}, ErrClosed
	}
	prev, _ := e.reg.Get(localID)
	q, err := e.reg.Update(localID, patch)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			e.statuses[localID] = StatusBlocked
		}
		return q, err
	}
	e.versions[localID]++
	e.statuses[localID] = StatusDirty
	if patch.Identifier != nil && !domain.SameIdentifier(prev.Identifier, q.Identifier) {
		e.startCheckLocked(localID, q.Identifier)
	}
	e.autosave.Trigger(localID)
	return q, nil
}

func (e *Editor) startCheckLocked(localID, identifier string) {
	e.checkSeq++
	seq := e.checkSeq
	e.checks[localID] = seq
	e.pending.add()
	go e.checkIdentifier(localID, identifier, seq)
}

func (e *Editor) checkIdentifier(localID, identifier string, seq uint64) {
	defer e.pending.done()

	unique, err := e.reg.CheckIdentifierUnique(e.ctx, identifier, localID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.checks[localID] != seq {
		return
	}
	delete(e.checks, localID)

	switch {
	case err == nil && !unique:
		e.statuses[localID] = StatusBlocked
		e.logger.Warn("identifier already in use", "local_id", localID, "identifier", identifier)
		return
	case err != nil && !errors.Is(err, domain.ErrCheckSuperseded):
		// The backend still rejects a duplicate on save.
		e.logger.Warn("identifier check failed, saving anyway", "local_id", localID, "error", err)
	}
	if !e.closed && e.statuses[localID] == StatusBlocked {
		e.statuses[localID] = StatusDirty
		e.autosave.Trigger(localID)
	}
}

// CheckIdentifier runs the debounced uniqueness check for a question's
// pending identifier.
func (e *Editor) CheckIdentifier(ctx context.Context, localID, identifier string) (bool, error) {
	return e.reg.CheckIdentifierUnique(ctx, identifier, localID)
}

// Flush saves pending content edits immediately and waits until every
// background write has finished. It returns the error of the last tree save.
func (e *Editor) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			e.autosave.FlushAll()
			e.pending.wait()
			e.saver.wait()
			if e.autosave.Pending() == 0 && e.pending.count() == 0 && !e.saver.busy() {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	return e.TreeError()
}

// Close flushes pending writes and rejects further edits.
func (e *Editor) Close(ctx context.Context) error {
	err := e.Flush(ctx)
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.autosave.Stop()
	return err
}

func (e *Editor) emitSave(typ domain.EventType, key string, start time.Time, err error) {
	e.hooks.EmitSave(e.ctx, &domain.SaveEvent{
		EventBase:   domain.EventBase{Timestamp: time.Now(), Type: typ, GroupID: e.groupID},
		QuestionKey: key,
		Duration:    time.Since(start),
		Err:         err,
	})
}

// startCreateLocked persists a new question in the background.
func (e *Editor) startCreateLocked(q domain.Question) {
	e.creating[q.LocalID] = true
	e.statuses[q.LocalID] = StatusSaving
	version := e.versions[q.LocalID]
	e.pending.add()
	go e.create(q, version)
}

func (e *Editor) create(q domain.Question, version uint64) {
	defer e.pending.done()

	start := time.Now()
	id, err := e.store.CreateQuestion(e.ctx, e.groupID, q)
	if err != nil {
		err = &domain.PersistenceError{Op: "create question", QuestionKey: q.LocalID, Err: err}
	}
	e.emitSave(domain.EventQuestionCreate, q.LocalID, start, err)

	e.mu.Lock()
	delete(e.creating, q.LocalID)
	tombstoned := e.tombstones[q.LocalID]
	delete(e.tombstones, q.LocalID)

	switch {
	case err != nil:
		if !tombstoned {
			e.statuses[q.LocalID] = StatusFailed
			if errors.Is(err, domain.ErrDuplicateIdentifier) {
				e.statuses[q.LocalID] = StatusBlocked
			}
		}
		e.mu.Unlock()
		e.logger.Warn("question create failed", "local_id", q.LocalID, "error", err)
		return

	case tombstoned:
		// Removed while the create was in flight.
		e.pending.add()
		e.mu.Unlock()
		e.logger.Debug("deleting question removed during create", "local_id", q.LocalID, "id", id)
		e.deleteRemote(id, q.LocalID)
		return
	}

	if _, err := e.reg.Commit(q.LocalID, id); err != nil {
		e.mu.Unlock()
		e.logger.Error("failed to commit question id", "local_id", q.LocalID, "id", id, "error", err)
		return
	}
	e.tree = resolveRef(e.tree, q.LocalID, id)
	if e.versions[q.LocalID] != version {
		e.statuses[q.LocalID] = StatusDirty
		e.autosave.Trigger(q.LocalID)
	} else {
		e.statuses[q.LocalID] = StatusSaved
	}
	e.mu.Unlock()

	e.logger.Debug("question created", "local_id", q.LocalID, "id", id)
	e.saver.request()
}

func resolveRef(tree domain.Tree, localID, id string) domain.Tree {
	return tree.Map(func(n domain.LogicNode) domain.LogicNode {
		if local, ok := n.Question.LocalID(); ok && local == localID {
			n.Question = domain.Resolved(id)
		}
		return n
	})
}

func (e *Editor) deleteRemote(id, key string) {
	defer e.pending.done()

	start := time.Now()
	err := e.store.DeleteQuestion(e.ctx, id)
	if err != nil {
		err = &domain.PersistenceError{Op: "delete question", QuestionKey: key, Err: err}
		e.logger.Warn("question delete failed", "id", id, "error", err)
	}
	e.emitSave(domain.EventQuestionDelete, key, start, err)
}

// flushContent is the debounced content save of one question.
func (e *Editor) flushContent(localID string) {
	e.mu.Lock()
	q, ok := e.reg.Get(localID)
	if !ok {
		e.mu.Unlock()
		return
	}
	if _, checking := e.checks[localID]; checking || e.reg.IdentifierStatus(q.Identifier) == registry.IdentifierChecking {
		e.statuses[localID] = StatusBlocked
		e.mu.Unlock()
		e.logger.Debug("autosave waiting on identifier check", "local_id", localID, "identifier", q.Identifier)
		return
	}
	if e.reg.IdentifierStatus(q.Identifier) == registry.IdentifierDuplicate {
		e.statuses[localID] = StatusBlocked
		e.mu.Unlock()
		e.logger.Warn("autosave blocked by duplicate identifier", "local_id", localID, "identifier", q.Identifier)
		return
	}
	if err := registry.ValidateQuestion(q); err != nil {
		e.statuses[localID] = StatusBlocked
		e.mu.Unlock()
		e.logger.Warn("autosave blocked by invalid question", "local_id", localID, "error", err)
		return
	}
	if !q.Saved() {
		// The pending create sends this content or re-triggers on completion.
		if !e.creating[localID] {
			e.startCreateLocked(q)
		}
		e.mu.Unlock()
		return
	}
	version := e.versions[localID]
	e.statuses[localID] = StatusSaving
	e.pending.add()
	e.mu.Unlock()

	defer e.pending.done()

	start := time.Now()
	err := e.store.UpdateQuestion(e.ctx, q.ID, domain.PatchFrom(q))
	if err != nil {
		err = &domain.PersistenceError{Op: "update question", QuestionKey: localID, Err: err}
	}
	e.emitSave(domain.EventQuestionUpdate, localID, start, err)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.versions[localID] != version {
		e.logger.Debug("discarding stale save response", "local_id", localID)
		return
	}
	if errors.Is(err, domain.ErrDuplicateIdentifier) {
		e.statuses[localID] = StatusBlocked
		e.logger.Warn("autosave blocked by duplicate identifier", "local_id", localID, "identifier", q.Identifier)
		return
	}
	if err != nil {
		e.statuses[localID] = StatusFailed
		e.logger.Warn("question update failed", "local_id", localID, "error", err)
		return
	}
	e.statuses[localID] = StatusSaved
}

func (e *Editor) saveTree(tree domain.Tree) error {
	start := time.Now()
	data, err := json.Marshal(tree)
	if err == nil {
		err = e.store.SaveLogicTree(e.ctx, e.groupID, data)
	}
	if err != nil {
		err = &domain.PersistenceError{Op: "save logic tree", Err: err}
		e.logger.Warn("logic tree save failed, keeping local tree", "group_id", e.groupID, "error", err)
	}
	e.emitSave(domain.EventTreeSave, "", start, err)

	e.mu.Lock()
	e.treeErr = err
	e.treeSaves++
	e.mu.Unlock()
	return err
}

// onIdentifierStatus resumes autosave for questions that were waiting on
// an identifier that turned out to be free.
func (e *Editor) onIdentifierStatus(identifier string, status registry.IdentifierStatus) {
	if status != registry.IdentifierUnique {
		return
	}
	q, ok := e.reg.ByIdentifier(identifier)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.statuses[q.LocalID] != StatusBlocked {
		return
	}
	e.statuses[q.LocalID] = StatusDirty
	e.autosave.Trigger(q.LocalID)
}

func (e *Editor) checkOpenLocked() error {
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *Editor) fail(op string, err error, args ...any) error {
	e.logger.Error(op+" failed", append(args, "error", err)...)
	return fmt.Errorf("%s: %w", op, err)
}
