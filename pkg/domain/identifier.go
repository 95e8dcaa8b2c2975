package domain

import "strings"

// NamespaceSeparator joins a group identifier and a question identifier.
const NamespaceSeparator = "."

// Identifier is a question identifier in both of its forms.
//
// Display is what authors type and see. Qualified is the namespaced form
// ("group.identifier") used as the answer key across groups.
type Identifier struct {
	Display   string `json:"display"`
	Qualified string `json:"qualified"`
}

// NewIdentifier builds both forms from either a bare or a namespaced identifier.
func NewIdentifier(groupIdentifier, raw string) Identifier {
	display := StripNamespace(raw)
	return Identifier{
		Display:   display,
		Qualified: Qualify(groupIdentifier, display),
	}
}

// Qualify prefixes a display identifier with the group identifier.
func Qualify(groupIdentifier, display string) string {
	display = StripNamespace(display)
	if groupIdentifier == "" || display == "" {
		return display
	}
	return groupIdentifier + NamespaceSeparator + display
}

// StripNamespace returns the display form of a possibly namespaced identifier.
func StripNamespace(raw string) string {
	if _, after, found := strings.Cut(raw, NamespaceSeparator); found {
		return after
	}
	return raw
}

// SameIdentifier compares identifiers case-insensitively, ignoring namespaces.
func SameIdentifier(a, b string) bool {
	return strings.EqualFold(StripNamespace(a), StripNamespace(b))
}
