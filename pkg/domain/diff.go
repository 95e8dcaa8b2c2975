package domain

import (
	"reflect"
)

// StateDiff represents the changes between two states.
// It is serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	GroupIndex *int           `json:"group_index,omitempty"`
	Page       *int           `json:"page,omitempty"`
	Status     *SessionStatus `json:"status,omitempty"`

	// Answers contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Answers map[string]any `json:"answers,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.GroupIndex != newState.GroupIndex {
		diff.GroupIndex = &newState.GroupIndex
	}
	if oldState == nil || oldState.Page != newState.Page {
		diff.Page = &newState.Page
	}
	if oldState == nil || oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}

	diff.Answers = diffAnswers(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffAnswers(old *State, new *State) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Answers {
			delta[k] = v
		}
		return nilIfEmpty(delta)
	}

	for k, newVal := range new.Answers {
		oldVal, exists := old.Answers[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Answers {
		if _, exists := new.Answers[k]; !exists {
			delta[k] = nil
		}
	}

	return nilIfEmpty(delta)
}

func nilIfEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.GroupIndex == nil &&
		d.Page == nil &&
		d.Status == nil &&
		len(d.Answers) == 0
}

// HasAnswerChanges reports whether any answer differs.
func (d *StateDiff) HasAnswerChanges() bool {
	return d != nil && len(d.Answers) > 0
}
