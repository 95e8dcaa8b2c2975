package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
)

// Combine merges several hook sets into one that calls each in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSave: func(ctx context.Context, e *domain.SaveEvent) {
			for _, h := range sets {
				h.EmitSave(ctx, e)
			}
		},
		OnHeal: func(ctx context.Context, e *domain.HealEvent) {
			for _, h := range sets {
				h.EmitHeal(ctx, e)
			}
		},
		OnEvaluate: func(ctx context.Context, e *domain.EvaluateEvent) {
			for _, h := range sets {
				h.EmitEvaluate(ctx, e)
			}
		},
		OnNavigate: func(ctx context.Context, e *domain.NavigateEvent) {
			for _, h := range sets {
				h.EmitNavigate(ctx, e)
			}
		},
	}
}

// LogHooks logs every event at debug level. Failed saves are logged as warnings.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSave: func(ctx context.Context, e *domain.SaveEvent) {
			level := slog.LevelDebug
			args := []any{"type", e.Type, "group_id", e.GroupID, "duration", e.Duration}
			if e.QuestionKey != "" {
				args = append(args, "question", e.QuestionKey)
			}
			if e.SessionID != "" {
				args = append(args, "session_id", e.SessionID)
			}
			if e.Err != nil {
				level = slog.LevelWarn
				args = append(args, "error", e.Err)
			}
			logger.Log(ctx, level, "save", args...)
		},
		OnHeal: func(ctx context.Context, e *domain.HealEvent) {
			logger.DebugContext(ctx, "heal", "group_id", e.GroupID,
				"relinked", e.Relinked, "dangling", e.Dangling, "reattached", e.Reattached)
		},
		OnEvaluate: func(ctx context.Context, e *domain.EvaluateEvent) {
			logger.DebugContext(ctx, "evaluate", "group_id", e.GroupID, "session_id", e.SessionID,
				"visible", e.Visible, "page", e.Page, "halted", e.Halted)
		},
		OnNavigate: func(ctx context.Context, e *domain.NavigateEvent) {
			logger.DebugContext(ctx, "navigate", "group_id", e.GroupID, "session_id", e.SessionID,
				"direction", e.Direction, "blocked", e.Blocked, "completed", e.Completed)
		},
	}
}
