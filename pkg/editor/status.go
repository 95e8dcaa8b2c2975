package editor

// SaveStatus describes the persistence state of a question's content.
type SaveStatus int

const (
	StatusSaved SaveStatus = iota
	StatusDirty
	StatusSaving
	StatusFailed
	// StatusBlocked means the content cannot be saved until it is fixed,
	// for example because its identifier is taken.
	StatusBlocked
)

func (s SaveStatus) String() string {
	switch s {
	case StatusDirty:
		return "dirty"
	case StatusSaving:
		return "saving"
	case StatusFailed:
		return "failed"
	case StatusBlocked:
		return "blocked"
	}
	return "saved"
}
