package arbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/aretw0/arbor/pkg/flow"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/session"
)

// ErrNoQuestionStore is returned by Editor when the engine has no backend to
// persist edits to.
var ErrNoQuestionStore = errors.New("no question store configured")

// Engine is the high-level entry point of the library. It serves groups from
// a loader, evaluates them, and hands out editors and respondent sessions.
//
// Engine implements ports.GroupLoader; loaded groups are cached until the
// underlying loader reports a change through Watch.
type Engine struct {
	loader    ports.GroupLoader
	questions ports.QuestionStore
	sessions  ports.SessionStore
	locker    ports.DistributedLocker
	hooks     domain.LifecycleHooks
	logger    *slog.Logger

	pageSize           int
	contentDebounce    time.Duration
	identifierDebounce time.Duration

	mu      sync.RWMutex
	cache   map[string]*domain.Group
	runtime *session.Runtime

	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithQuestionStore sets the backend editors persist to.
func WithQuestionStore(s ports.QuestionStore) Option {
	return func(e *Engine) {
		e.questions = s
	}
}

// WithSessionStore sets where respondent sessions are kept (default: memory).
func WithSessionStore(s ports.SessionStore) Option {
	return func(e *Engine) {
		e.sessions = s
	}
}

// WithLocker enables distributed locking of sessions.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithPageSize sets how many items an evaluated page holds.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		e.pageSize = n
	}
}

// WithContentDebounce sets the autosave quiet period of editors.
func WithContentDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.contentDebounce = d
	}
}

// WithIdentifierDebounce sets the quiet period before remote identifier checks.
func WithIdentifierDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.identifierDebounce = d
	}
}

// New initializes an Engine over loader.
func New(loader ports.GroupLoader, opts ...Option) (*Engine, error) {
	if loader == nil {
		return nil, fmt.Errorf("a group loader is required")
	}
	eng := &Engine{
		loader:             loader,
		pageSize:           flow.DefaultPageSize,
		contentDebounce:    editor.DefaultContentDebounce,
		identifierDebounce: registry.DefaultCheckDebounce,
		cache:              make(map[string]*domain.Group),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("engine", eng.Name)
	}
	if eng.sessions == nil {
		eng.sessions = memory.NewStore()
	}

	managerOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker))
	}
	eng.runtime = session.NewRuntime(eng, session.NewManager(eng.sessions, managerOpts...),
		session.WithPageSize(eng.pageSize),
		session.WithHooks(eng.hooks),
	)
	return eng, nil
}

// Open initializes an Engine that reads groups from a Loam repository at dir.
func Open(dir string, opts ...Option) (*Engine, error) {
	loader, err := loamAdapter.Open(dir)
	if err != nil {
		return nil, err
	}
	named := func(e *Engine) { e.Name = filepath.Base(dir) }
	return New(loader, append([]Option{named}, opts...)...)
}

// LoadGroup implements ports.GroupLoader with caching.
func (e *Engine) LoadGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	e.mu.RLock()
	g, ok := e.cache[groupID]
	e.mu.RUnlock()
	if ok {
		return g, nil
	}

	g, err := e.loader.LoadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[groupID] = g
	e.mu.Unlock()
	return g, nil
}

// ListGroups implements ports.GroupLoader.
func (e *Engine) ListGroups(ctx context.Context) ([]string, error) {
	return e.loader.ListGroups(ctx)
}

// Invalidate drops cached groups. With no ids every group is dropped.
func (e *Engine) Invalidate(groupIDs ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(groupIDs) == 0 {
		e.cache = make(map[string]*domain.Group)
		return
	}
	for _, id := range groupIDs {
		delete(e.cache, id)
	}
}

// Evaluate runs the flow of a group against answers and returns one page.
func (e *Engine) Evaluate(ctx context.Context, groupID string, answers domain.Answers, page int) (flow.Result, error) {
	g, err := e.LoadGroup(ctx, groupID)
	if err != nil {
		return flow.Result{}, err
	}
	res := flow.Evaluate(g.EffectiveLogic(), flow.QuestionList(g.Questions), answers, page, e.pageSize,
		flow.WithNamespace(g.Namespace()))

	e.hooks.EmitEvaluate(ctx, &domain.EvaluateEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventEvaluate, GroupID: groupID},
		Visible:   len(res.Visible),
		Page:      res.Page,
		Halted:    res.Halted,
	})
	return res, nil
}

// Editor opens an editor over a group. Dangling references left by an
// earlier session are healed before it is returned.
// The caller must Close the editor to flush pending writes.
func (e *Engine) Editor(ctx context.Context, groupID string) (*editor.Editor, error) {
	if e.questions == nil {
		return nil, ErrNoQuestionStore
	}
	g, err := e.loader.LoadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	reg := registry.New(groupID,
		registry.WithChecker(e.questions),
		registry.WithCheckDebounce(e.identifierDebounce),
		registry.WithNamespace(g.Namespace()),
		registry.WithLogger(e.logger),
	)
	if err := reg.Load(g.Questions...); err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}

	ed := editor.New(reg, e.questions, g.EffectiveLogic(),
		editor.WithLogger(e.logger.With("group_id", groupID)),
		editor.WithLifecycleHooks(e.hooks),
		editor.WithContentDebounce(e.contentDebounce),
		editor.WithContext(ctx),
	)
	if _, err := ed.HealDanglingReferences(ctx); err != nil {
		_ = ed.Close(ctx)
		return nil, err
	}
	e.Invalidate(groupID)
	return ed, nil
}

// OpenSession resumes a respondent session or starts one over groupIDs.
func (e *Engine) OpenSession(ctx context.Context, sessionID string, groupIDs ...string) (*session.Session, error) {
	return e.runtime.Open(ctx, sessionID, groupIDs...)
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.runtime.Manager()
}

// Watch forwards change notifications from the loader and drops the cached
// copy of every changed group. It fails if the loader cannot be watched.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	w, ok := e.loader.(ports.Watchable)
	if !ok {
		return nil, fmt.Errorf("current loader does not support watching")
	}
	events, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		for id := range events {
			e.Invalidate(id)
			e.logger.Debug("group changed", "group_id", id)
			select {
			case out <- id:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Loader returns the underlying GroupLoader.
func (e *Engine) Loader() ports.GroupLoader {
	return e.loader
}
