package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
	"github.com/aretw0/arbor/pkg/ports"
)

// Runtime opens respondent sessions over groups served by a loader.
type Runtime struct {
	loader   ports.GroupLoader
	manager  *Manager
	pageSize int
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
}

// RuntimeOption configures the Runtime.
type RuntimeOption func(*Runtime)

// WithPageSize sets how many items a page shows.
func WithPageSize(n int) RuntimeOption {
	return func(r *Runtime) {
		r.pageSize = n
	}
}

// WithHooks sets lifecycle callbacks for evaluations, saves and navigation.
func WithHooks(h domain.LifecycleHooks) RuntimeOption {
	return func(r *Runtime) {
		r.hooks = h
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) RuntimeOption {
	return func(r *Runtime) {
		r.now = now
	}
}

// NewRuntime creates a runtime. It logs through the manager's logger.
func NewRuntime(loader ports.GroupLoader, manager *Manager, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		loader:   loader,
		manager:  manager,
		pageSize: flow.DefaultPageSize,
		logger:   manager.logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Manager returns the session manager.
func (r *Runtime) Manager() *Manager { return r.manager }

// Open resumes a stored session, or starts one over groupIDs when none
// exists. The groups of a resumed session are the ones it was started with.
func (r *Runtime) Open(ctx context.Context, sessionID string, groupIDs ...string) (*Session, error) {
	state, err := r.manager.LoadOrStart(ctx, sessionID, groupIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to open session %s: %w", sessionID, err)
	}

	groups := make(map[string]*domain.Group, len(state.Groups))
	for _, id := range state.Groups {
		g, err := r.loader.LoadGroup(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, err)
		}
		groups[id] = g
	}

	working := state.Clone()
	if working.GroupIndex < 0 || working.GroupIndex >= len(working.Groups) {
		working.GroupIndex = 0
	}
	if working.Status == domain.StatusLoading {
		working.Status = domain.StatusActive
	}

	s := &Session{
		rt:     r,
		groups: groups,
		state:  working,
		saved:  state.Clone(),
	}
	s.evaluateLocked(ctx)

	r.logger.Debug("session opened", "session_id", sessionID, "group", working.CurrentGroup(), "page", working.Page)
	return s, nil
}

// Session is one open respondent session. It is safe for concurrent use.
type Session struct {
	rt     *Runtime
	mu     sync.Mutex
	groups map[string]*domain.Group
	state  *domain.State
	saved  *domain.State
	focus  string
	result flow.Result
}

// View is what the respondent currently sees.
type View struct {
	SessionID  string               `json:"session_id"`
	GroupID    string               `json:"group_id"`
	GroupName  string               `json:"group_name"`
	GroupIndex int                  `json:"group_index"`
	GroupCount int                  `json:"group_count"`
	Status     domain.SessionStatus `json:"status"`
	Page       flow.Result          `json:"page"`
	// CanGoBack is true unless this is the first page of the first group.
	CanGoBack bool `json:"can_go_back"`
	// IsLast is true on the last page of the last group.
	IsLast bool `json:"is_last"`
}
