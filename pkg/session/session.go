package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
	"github.com/aretw0/arbor/pkg/schema"
)

// ErrUnknownSet is returned for instance operations on a set that is not visible.
var ErrUnknownSet = errors.New("unknown repeatable set")

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SessionID
}

// View returns the current page.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Answers returns a copy of the working answers.
func (s *Session) Answers() domain.Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Answers.Clone()
}

// Status returns the lifecycle stage of the session.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status
}

// Focus marks a question as being edited. A reload after a save never
// replaces the focused answer with the stored one.
func (s *Session) Focus(identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.questionLocked(identifier)
	if err != nil {
		return err
	}
	s.focus = s.keyLocked(q)
	return nil
}

// Blur clears the focus and persists the answers when they differ from
// the last save.
func (s *Session) Blur(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.focus = ""
	if domain.Diff(s.saved, s.state) == nil {
		return nil
	}
	return s.saveLocked(ctx, s.state.Clone())
}

// SetAnswer records an answer for a question of the current group. When a
// conditional reads the question the answers are saved and the page is
// re-evaluated; it reports whether that happened.
func (s *Session) SetAnswer(ctx context.Context, identifier string, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.questionLocked(identifier)
	if err != nil {
		return false, err
	}
	if err := schema.ValidateAnswer(q, value); err != nil {
		return false, err
	}
	s.state.Answers[s.keyLocked(q)] = domain.CloneValue(value)
	return s.afterEditLocked(ctx, q)
}

// SetInstanceAnswer records the answer of one instance of a repeatable question.
func (s *Session) SetInstanceAnswer(ctx context.Context, identifier string, instance int, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.questionLocked(identifier)
	if err != nil {
		return false, err
	}
	if !q.Repeatable {
		return false, fmt.Errorf("question %s is not repeatable", q.Identifier)
	}
	if instance < 0 {
		return false, fmt.Errorf("invalid instance %d", instance)
	}
	if err := schema.ValidateAnswer(q, []any{value}); err != nil {
		return false, err
	}

	key := s.keyLocked(q)
	list := padded(s.state.Answers[key], instance+1)
	list[instance] = value
	s.state.Answers[key] = list
	return s.afterEditLocked(ctx, q)
}

func (s *Session) afterEditLocked(ctx context.Context, q domain.Question) (bool, error) {
	if s.state.Status == domain.StatusCompleted {
		s.state.Status = domain.StatusActive
		s.state.CompletedAt = nil
	}
	if !s.result.DependsOn(q.Identifier) {
		s.result = s.result.WithAnswers(s.state.Answers, s.namespaceLocked())
		return false, nil
	}
	if err := s.saveLocked(ctx, s.state.Clone()); err != nil {
		return false, err
	}
	s.reloadLocked(ctx)
	s.evaluateLocked(ctx)
	return true, nil
}

// Save persists the working copy.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, s.state.Clone())
}

// Forward validates the required questions of the current page and moves
// to the next page, the next group, or completion. On the last page of the
// last group with nothing changed since the last save it returns without
// saving.
func (s *Session) Forward(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if missing := s.missingLocked(); len(missing) > 0 {
		s.emitNavigate(ctx, "forward", true, false)
		return s.viewLocked(), &domain.ValidationError{Missing: missing}
	}

	next := s.state.Clone()
	if s.result.IsLastPage && next.IsLastGroup() {
		if next.Status != domain.StatusCompleted {
			now := s.rt.now()
			next.Status = domain.StatusCompleted
			next.CompletedAt = &now
		}
		if domain.Diff(s.saved, next) == nil {
			s.state = next
			s.emitNavigate(ctx, "forward", false, true)
			return s.viewLocked(), nil
		}
		if err := s.saveLocked(ctx, next); err != nil {
			return s.viewLocked(), err
		}
		s.state = next
		s.emitNavigate(ctx, "forward", false, true)
		s.rt.logger.Info("session completed", "session_id", next.SessionID)
		return s.viewLocked(), nil
	}

	if s.result.IsLastPage {
		next.GroupIndex++
		next.Page = 1
	} else {
		next.Page++
	}
	if err := s.saveLocked(ctx, next); err != nil {
		return s.viewLocked(), err
	}
	s.state = next
	s.evaluateLocked(ctx)
	s.emitNavigate(ctx, "forward", false, false)
	return s.viewLocked(), nil
}

// Backward saves and moves to the previous page, or to the last page of
// the previous group. On the very first page it only saves.
func (s *Session) Backward(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if next.Status == domain.StatusCompleted {
		next.Status = domain.StatusActive
		next.CompletedAt = nil
	}
	switch {
	case next.Page > 1:
		next.Page--
	case next.GroupIndex > 0:
		next.GroupIndex--
		prev := s.groups[next.CurrentGroup()]
		next.Page = s.evaluateGroup(prev, next.Answers, math.MaxInt32).TotalPages
	}

	if err := s.saveLocked(ctx, next); err != nil {
		return s.viewLocked(), err
	}
	s.state = next
	s.evaluateLocked(ctx)
	s.emitNavigate(ctx, "backward", false, false)
	return s.viewLocked(), nil
}

// AddInstance appends an empty instance to a repeatable set: every
// question of the set gets one more slot.
func (s *Session) AddInstance(ctx context.Context, set int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := s.result.SetQuestions(set)
	if len(questions) == 0 {
		return s.viewLocked(), fmt.Errorf("%w: %d", ErrUnknownSet, set)
	}
	n := s.result.Instances(set)
	for _, q := range questions {
		key := s.keyLocked(q)
		s.state.Answers[key] = padded(s.state.Answers[key], n+1)
	}
	s.evaluateLocked(ctx)
	return s.viewLocked(), nil
}

// RemoveInstance deletes one instance from every question of a set. The
// answers are saved first when a conditional reads any of them.
func (s *Session) RemoveInstance(ctx context.Context, set, instance int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := s.result.SetQuestions(set)
	if len(questions) == 0 {
		return s.viewLocked(), fmt.Errorf("%w: %d", ErrUnknownSet, set)
	}
	n := s.result.Instances(set)
	if instance < 0 || instance >= n {
		return s.viewLocked(), fmt.Errorf("instance %d out of range [0,%d)", instance, n)
	}

	dependency := false
	for _, q := range questions {
		key := s.keyLocked(q)
		list := padded(s.state.Answers[key], n)
		s.state.Answers[key] = append(list[:instance], list[instance+1:]...)
		if s.result.DependsOn(q.Identifier) {
			dependency = true
		}
	}

	if dependency {
		if err := s.saveLocked(ctx, s.state.Clone()); err != nil {
			return s.viewLocked(), err
		}
		s.reloadLocked(ctx)
	}
	s.evaluateLocked(ctx)
	return s.viewLocked(), nil
}

func (s *Session) saveLocked(ctx context.Context, next *domain.State) error {
	next.UpdatedAt = s.rt.now()
	start := time.Now()
	err := s.rt.manager.Save(ctx, next.SessionID, next)
	if err != nil {
		err = &domain.PersistenceError{Op: "save session", QuestionKey: next.SessionID, Err: err}
		s.rt.logger.Warn("session save failed", "session_id", next.SessionID, "error", err)
	}
	s.rt.hooks.EmitSave(ctx, &domain.SaveEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSessionSave, GroupID: next.CurrentGroup()},
		SessionID: next.SessionID,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return err
	}
	s.saved = next.Clone()
	s.state.UpdatedAt = next.UpdatedAt
	return nil
}

// reloadLocked reads the stored answers back, keeping the focused answer.
func (s *Session) reloadLocked(ctx context.Context) {
	stored, err := s.rt.manager.Load(ctx, s.state.SessionID)
	if err != nil {
		s.rt.logger.Warn("session reload failed, keeping local answers", "session_id", s.state.SessionID, "error", err)
		return
	}
	s.state.Answers = mergeAnswers(stored.Answers, s.state.Answers, s.focus)
	s.saved = stored
}

// mergeAnswers takes the stored answers and keeps the local value of the
// focused key.
func mergeAnswers(stored, local domain.Answers, focus string) domain.Answers {
	out := stored.Clone()
	if out == nil {
		out = make(domain.Answers)
	}
	if focus == "" {
		return out
	}
	if v, ok := local[focus]; ok {
		out[focus] = domain.CloneValue(v)
	} else {
		delete(out, focus)
	}
	return out
}

func (s *Session) evaluateLocked(ctx context.Context) {
	g := s.currentGroupLocked()
	res := s.evaluateGroup(g, s.state.Answers, s.state.Page)
	s.state.Page = res.Page
	s.result = res

	s.rt.hooks.EmitEvaluate(ctx, &domain.EvaluateEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventEvaluate, GroupID: g.ID},
		SessionID: s.state.SessionID,
		Visible:   res.TotalItems,
		Page:      res.Page,
		Halted:    res.Halted,
	})
}

func (s *Session) evaluateGroup(g *domain.Group, answers domain.Answers, page int) flow.Result {
	return flow.Evaluate(g.EffectiveLogic(), flow.QuestionList(g.Questions), answers, page, s.rt.pageSize,
		flow.WithNamespace(g.Namespace()))
}

// missingLocked lists the required questions on the current page without
// an answer. Every instance of a repeatable question counts.
func (s *Session) missingLocked() []string {
	var missing []string
	seen := make(map[string]bool)
	for _, it := range s.result.Items {
		if !it.Question.Required || !domain.IsEmptyValue(it.Answer) {
			continue
		}
		name := it.Identifier.Display
		if it.Set >= 0 {
			name = fmt.Sprintf("%s[%d]", name, it.Instance)
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	return missing
}

func (s *Session) emitNavigate(ctx context.Context, direction string, blocked, completed bool) {
	s.rt.hooks.EmitNavigate(ctx, &domain.NavigateEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNavigate, GroupID: s.state.CurrentGroup()},
		SessionID: s.state.SessionID,
		Direction: direction,
		Blocked:   blocked,
		Completed: completed,
	})
}

func (s *Session) viewLocked() View {
	g := s.currentGroupLocked()
	return View{
		SessionID:  s.state.SessionID,
		GroupID:    g.ID,
		GroupName:  g.Name,
		GroupIndex: s.state.GroupIndex,
		GroupCount: len(s.state.Groups),
		Status:     s.state.Status,
		Page:       s.result,
		CanGoBack:  s.result.Page > 1 || s.state.GroupIndex > 0,
		IsLast:     s.result.IsLastPage && s.state.IsLastGroup(),
	}
}

func (s *Session) currentGroupLocked() *domain.Group {
	return s.groups[s.state.CurrentGroup()]
}

func (s *Session) namespaceLocked() string {
	return s.currentGroupLocked().Namespace()
}

func (s *Session) keyLocked(q domain.Question) string {
	return domain.Qualify(s.namespaceLocked(), q.Identifier)
}

func (s *Session) questionLocked(identifier string) (domain.Question, error) {
	g := s.currentGroupLocked()
	q, ok := g.Question(identifier)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %s in group %s", domain.ErrQuestionNotFound, identifier, g.ID)
	}
	return q, nil
}

// padded returns a private copy of a list answer with at least n entries.
// A scalar becomes the first entry.
func padded(raw any, n int) []any {
	var out []any
	if list, ok := domain.AsList(raw); ok {
		out = append(out, list...)
	} else if !domain.IsEmptyValue(raw) {
		out = append(out, raw)
	}
	for len(out) < n {
		out = append(out, "")
	}
	return out
}
