package flow

import (
	"strconv"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Holds reports whether a conditional's predicate is satisfied.
//
// A missing or empty answer never satisfies equals or not_equals. List
// answers match equals when any entry matches and not_equals when at least
// one entry is non-empty and none matches. Count operators count the
// non-empty entries and never hold when the value is not an integer.
func Holds(cond domain.Conditional, answers domain.Answers, namespace string) bool {
	raw, _ := answers.Lookup(namespace, cond.IfIdentifier)

	switch cond.Operator {
	case domain.OpEquals, "":
		return matchAny(raw, cond.Value)
	case domain.OpNotEquals:
		return !domain.IsEmptyValue(raw) && !matchAny(raw, cond.Value)
	case domain.OpCountEquals, domain.OpCountGreaterThan, domain.OpCountLessThan:
		want, err := strconv.Atoi(strings.TrimSpace(cond.Value))
		if err != nil {
			return false
		}
		got := domain.CountNonEmpty(raw)
		switch cond.Operator {
		case domain.OpCountEquals:
			return got == want
		case domain.OpCountGreaterThan:
			return got > want
		default:
			return got < want
		}
	}
	return false
}

func matchAny(raw any, value string) bool {
	if domain.IsEmptyValue(raw) {
		return false
	}
	if list, ok := domain.AsList(raw); ok {
		for _, e := range list {
			if s, ok := domain.AsScalar(e); ok && !domain.IsEmptyValue(e) && s == value {
				return true
			}
		}
		return false
	}
	s, ok := domain.AsScalar(raw)
	return ok && s == value
}
