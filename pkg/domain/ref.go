package domain

type refState uint8

const (
	refNone refState = iota
	refUnresolved
	refResolved
)

// QuestionRef points at a question from the logic tree.
//
// A ref is either Unresolved, carrying the client-side local id of a question
// that has not been persisted yet, or Resolved, carrying the persisted id.
// The zero value points at nothing.
type QuestionRef struct {
	state refState
	value string
}

// Unresolved returns a reference to a question that only exists locally.
func Unresolved(localID string) QuestionRef {
	return QuestionRef{state: refUnresolved, value: localID}
}

// Resolved returns a reference to a persisted question.
func Resolved(id string) QuestionRef {
	return QuestionRef{state: refResolved, value: id}
}

// IsZero reports whether the ref points at nothing.
func (r QuestionRef) IsZero() bool { return r.state == refNone || r.value == "" }

// IsResolved reports whether the ref carries a persisted id.
func (r QuestionRef) IsResolved() bool { return r.state == refResolved && r.value != "" }

// LocalID returns the local id of an unresolved ref.
func (r QuestionRef) LocalID() (string, bool) {
	if r.state != refUnresolved {
		return "", false
	}
	return r.value, r.value != ""
}

// PersistedID returns the persisted id of a resolved ref.
func (r QuestionRef) PersistedID() (string, bool) {
	if r.state != refResolved {
		return "", false
	}
	return r.value, r.value != ""
}

// Switch calls exactly one of the callbacks depending on the ref state.
// It returns false for the zero ref.
func (r QuestionRef) Switch(unresolved func(localID string), resolved func(id string)) bool {
	switch {
	case r.IsZero():
		return false
	case r.state == refResolved:
		resolved(r.value)
	default:
		unresolved(r.value)
	}
	return true
}

// Key returns a string that is unique across both ref states.
func (r QuestionRef) Key() string {
	switch r.state {
	case refResolved:
		return "id:" + r.value
	case refUnresolved:
		return "local:" + r.value
	}
	return ""
}

func (r QuestionRef) String() string {
	if r.IsZero() {
		return "<none>"
	}
	return r.Key()
}
