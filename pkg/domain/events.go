package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventQuestionCreate EventType = "question_create"
	EventQuestionUpdate EventType = "question_update"
	EventQuestionDelete EventType = "question_delete"
	EventTreeSave       EventType = "tree_save"
	EventSessionSave    EventType = "session_save"
	EventHeal           EventType = "heal"
	EventEvaluate       EventType = "evaluate"
	EventNavigate       EventType = "navigate"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	GroupID   string    `json:"group_id,omitempty"`
}

// SaveEvent reports the outcome of a backend write.
type SaveEvent struct {
	EventBase
	QuestionKey string        `json:"question_key,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

// HealEvent summarizes a repair pass over a logic tree.
type HealEvent struct {
	EventBase
	Relinked   int `json:"relinked"`
	Dangling   int `json:"dangling"`
	Reattached int `json:"reattached"`
}

// EvaluateEvent summarizes a flow evaluation run on behalf of a session.
type EvaluateEvent struct {
	EventBase
	SessionID string `json:"session_id"`
	Visible   int    `json:"visible"`
	Page      int    `json:"page"`
	Halted    bool   `json:"halted,omitempty"`
}

// NavigateEvent reports a page or group move.
type NavigateEvent struct {
	EventBase
	SessionID string `json:"session_id"`
	Direction string `json:"direction"`
	Blocked   bool   `json:"blocked,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every hook is optional.
type LifecycleHooks struct {
	OnSave     func(context.Context, *SaveEvent)
	OnHeal     func(context.Context, *HealEvent)
	OnEvaluate func(context.Context, *EvaluateEvent)
	OnNavigate func(context.Context, *NavigateEvent)
}

// EmitSave calls OnSave when set.
func (h LifecycleHooks) EmitSave(ctx context.Context, e *SaveEvent) {
	if h.OnSave != nil {
		h.OnSave(ctx, e)
	}
}

// EmitHeal calls OnHeal when set.
func (h LifecycleHooks) EmitHeal(ctx context.Context, e *HealEvent) {
	if h.OnHeal != nil {
		h.OnHeal(ctx, e)
	}
}

// EmitEvaluate calls OnEvaluate when set.
func (h LifecycleHooks) EmitEvaluate(ctx context.Context, e *EvaluateEvent) {
	if h.OnEvaluate != nil {
		h.OnEvaluate(ctx, e)
	}
}

// EmitNavigate calls OnNavigate when set.
func (h LifecycleHooks) EmitNavigate(ctx context.Context, e *NavigateEvent) {
	if h.OnNavigate != nil {
		h.OnNavigate(ctx, e)
	}
}
