package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Answers maps identifiers to answer values.
//
// Values are strings for scalar questions, lists for repeatable questions
// and checkbox groups, and maps for person records. Keys are normally
// qualified identifiers; lookups also accept the bare form.
type Answers map[string]any

// Lookup finds the answer for an identifier written in either form.
// A namespaced identifier is tried as given first, so it can read another
// group's answer; then the identifier qualified with groupIdentifier, then
// its bare form.
func (a Answers) Lookup(groupIdentifier, identifier string) (any, bool) {
	for _, key := range lookupKeys(groupIdentifier, identifier) {
		if v, ok := a[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func lookupKeys(groupIdentifier, identifier string) []string {
	keys := []string{Qualify(groupIdentifier, identifier), identifier, StripNamespace(identifier)}
	if strings.Contains(identifier, NamespaceSeparator) {
		keys = []string{identifier, Qualify(groupIdentifier, identifier), StripNamespace(identifier)}
	}
	out := keys[:0]
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Clone returns a deep copy of the answers.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies an answer value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = CloneValue(e)
		}
		return out
	}
	return v
}

// Answered returns the sorted keys holding a non-empty answer.
func (a Answers) Answered() []string {
	keys := make([]string, 0, len(a))
	for k, v := range a {
		if !IsEmptyValue(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// IsEmptyValue reports whether v counts as "no answer".
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		for _, e := range val {
			if !IsEmptyValue(e) {
				return false
			}
		}
		return true
	case []string:
		for _, e := range val {
			if strings.TrimSpace(e) != "" {
				return false
			}
		}
		return true
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// AsList returns the entries of a list answer, or nil for scalars.
func AsList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// AsScalar renders a scalar answer as the string conditionals compare against.
func AsScalar(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case fmt.Stringer:
		return val.String(), true
	}
	return "", false
}

// CountNonEmpty counts the non-empty entries of an answer. A non-empty
// scalar counts as one.
func CountNonEmpty(v any) int {
	if list, ok := AsList(v); ok {
		n := 0
		for _, e := range list {
			if !IsEmptyValue(e) {
				n++
			}
		}
		return n
	}
	if IsEmptyValue(v) {
		return 0
	}
	return 1
}
