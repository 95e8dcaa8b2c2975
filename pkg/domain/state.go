package domain

import "time"

// SessionStatus is the lifecycle stage of a respondent session.
type SessionStatus string

const (
	StatusLoading   SessionStatus = "loading"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// State is the persisted snapshot of a respondent session.
type State struct {
	SessionID string `json:"session_id"`

	// Groups is the ordered list of groups the respondent walks through.
	Groups []string `json:"groups"`

	// GroupIndex points into Groups.
	GroupIndex int `json:"group_index"`

	// Page is 1-indexed within the current group.
	Page int `json:"page"`

	Status SessionStatus `json:"status"`

	Answers Answers `json:"answers"`

	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewState creates a clean state positioned on the first page of the first group.
func NewState(sessionID string, groups ...string) *State {
	return &State{
		SessionID: sessionID,
		Groups:    append([]string(nil), groups...),
		Page:      1,
		Status:    StatusLoading,
		Answers:   make(Answers),
	}
}

// CurrentGroup returns the id of the group being answered.
func (s *State) CurrentGroup() string {
	if s.GroupIndex < 0 || s.GroupIndex >= len(s.Groups) {
		return ""
	}
	return s.Groups[s.GroupIndex]
}

// IsLastGroup reports whether the session is on its final group.
func (s *State) IsLastGroup() bool {
	return s.GroupIndex >= len(s.Groups)-1
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Groups = append([]string(nil), s.Groups...)
	out.Answers = s.Answers.Clone()
	if out.Answers == nil {
		out.Answers = make(Answers)
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
