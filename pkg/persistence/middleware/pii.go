package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Mask replaces the value of every masked answer.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// CompilePatterns compiles PII key patterns, reporting the first invalid one.
func CompilePatterns(patternStrings []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return patterns, nil
}

// NewPIIMiddleware creates a middleware that masks answers whose key
// (group.identifier) matches any of the patterns. Masking happens on save
// only, so the stored copy is redacted while the live session keeps its values.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns, err := CompilePatterns(patternStrings)
	if err != nil {
		panic(err.Error())
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	cloned := state.Clone()
	maskMap(cloned.Answers, m.patterns)
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = maskValue(v)
			continue
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}

// maskValue keeps the shape of repeatable answers so instance counts survive.
func maskValue(v any) any {
	if list, ok := domain.AsList(v); ok {
		out := make([]any, len(list))
		for i, entry := range list {
			if domain.IsEmptyValue(entry) {
				out[i] = entry
			} else {
				out[i] = Mask
			}
		}
		return out
	}
	return Mask
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
