package schema

import (
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Schema maps qualified identifiers to their answer types.
type Schema map[string]Type

// ForQuestions builds the schema of a group's questions. Keys are qualified
// with namespace.
func ForQuestions(namespace string, questions []domain.Question) Schema {
	s := make(Schema, len(questions))
	for _, q := range questions {
		s[domain.Qualify(namespace, q.Identifier)] = ForQuestion(q)
	}
	return s
}

// Validate checks every answer present in answers against the schema.
// Answers without a schema entry and empty answers are skipped.
func Validate(schema Schema, answers domain.Answers) error {
	if len(schema) == 0 {
		return nil
	}

	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		value, ok := lookup(answers, key)
		if !ok || domain.IsEmptyValue(value) {
			continue
		}
		if err := check(key, schema[key], value); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateFields validates only the given keys. Keys not in the schema are
// ignored.
func ValidateFields(schema Schema, answers domain.Answers, keys ...string) error {
	var errs []error
	for _, key := range keys {
		typ, ok := schema[key]
		if !ok {
			continue
		}
		value, ok := lookup(answers, key)
		if !ok || domain.IsEmptyValue(value) {
			continue
		}
		if err := check(key, typ, value); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateAnswer checks a single answer for a question.
func ValidateAnswer(q domain.Question, value any) error {
	if domain.IsEmptyValue(value) {
		return nil
	}
	if err := ForQuestion(q).Validate(value); err != nil {
		return &domain.AnswerTypeError{Identifier: q.Identifier, Type: q.Type, Err: err}
	}
	return nil
}

func check(key string, typ Type, value any) error {
	if err := typ.Validate(value); err != nil {
		return &domain.AnswerTypeError{Identifier: key, Type: domain.QuestionType(typ.Name()), Err: err}
	}
	return nil
}

// lookup reads a qualified key, falling back to its bare form.
func lookup(answers domain.Answers, key string) (any, bool) {
	ns, _, ok := strings.Cut(key, domain.NamespaceSeparator)
	if !ok {
		ns = ""
	}
	return answers.Lookup(ns, key)
}
