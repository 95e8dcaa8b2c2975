package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/aretw0/arbor/pkg/domain"
)

// Type defines the contract for answer validation.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "text", "date").
	Name() string
	// Validate checks if a non-empty value conforms to this type.
	Validate(value any) error
}

// TextType validates free text against optional length and pattern rules.
type TextType struct {
	min, max int
	pattern  *regexp.Regexp
}

func (t *TextType) Name() string { return "text" }

func (t *TextType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	n := utf8.RuneCountInString(s)
	if t.min > 0 && n < t.min {
		return fmt.Errorf("shorter than %d characters", t.min)
	}
	if t.max > 0 && n > t.max {
		return fmt.Errorf("longer than %d characters", t.max)
	}
	if t.pattern != nil && !t.pattern.MatchString(s) {
		return fmt.Errorf("does not match %s", t.pattern)
	}
	return nil
}

// ChoiceType validates a value against a fixed option list.
type ChoiceType struct {
	values []string
}

func (t *ChoiceType) Name() string { return "choice" }

func (t *ChoiceType) Validate(value any) error {
	s, ok := domain.AsScalar(value)
	if !ok {
		return fmt.Errorf("expected a single value, got %T", value)
	}
	if len(t.values) > 0 && !slices.Contains(t.values, s) {
		return fmt.Errorf("%q is not one of the options", s)
	}
	return nil
}

// DateType validates ISO dates, optionally with a time of day.
type DateType struct {
	withTime bool
}

func (t *DateType) Name() string {
	if t.withTime {
		return "datetime"
	}
	return "date"
}

func (t *DateType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected date string, got %T", value)
	}
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return nil
	}
	if t.withTime {
		if _, err := time.Parse(time.RFC3339, s); err == nil {
			return nil
		}
		if _, err := time.Parse("2006-01-02T15:04", s); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%q is not a valid %s", s, t.Name())
}

// PersonType accepts a person record or a reference to one.
type PersonType struct{}

func (t *PersonType) Name() string { return "person" }

func (t *PersonType) Validate(value any) error {
	switch value.(type) {
	case string, map[string]any, map[string]string:
		return nil
	}
	return fmt.Errorf("expected person record or id, got %T", value)
}

// SliceType validates lists of a specific element type. Empty entries are
// allowed; they stand for unanswered instances.
type SliceType struct {
	elemType Type
}

func (t *SliceType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

func (t *SliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected list, got %T", value)
	}

	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		if domain.IsEmptyValue(elem) {
			continue
		}
		if err := t.elemType.Validate(elem); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	name     string
	validate func(any) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(value any) error {
	return t.validate(value)
}

// --- Factory Functions ---

// Text creates a free text validator. rules may be nil.
// An invalid pattern is ignored; question validation rejects it earlier.
func Text(rules *domain.ValidationRules) Type {
	t := &TextType{}
	if rules != nil {
		t.min, t.max = rules.MinLength, rules.MaxLength
		if rules.Pattern != "" {
			t.pattern, _ = regexp.Compile(rules.Pattern)
		}
	}
	return t
}

// Choice creates a validator accepting only the given values.
// With no values any single value is accepted.
func Choice(values ...string) Type { return &ChoiceType{values: values} }

// Date creates a date validator.
func Date(withTime bool) Type { return &DateType{withTime: withTime} }

// Person creates a person validator.
func Person() Type { return &PersonType{} }

// Slice creates a list validator for elements of the given type.
func Slice(elemType Type) Type {
	return &SliceType{elemType: elemType}
}

// Custom creates a custom validator with a user-defined function.
func Custom(name string, validate func(any) error) Type {
	return &CustomType{name: name, validate: validate}
}

// ForQuestion returns the answer type of a question.
func ForQuestion(q domain.Question) Type {
	var t Type
	switch {
	case q.Type == domain.TypeDate:
		t = Date(q.Display.IncludeTime)
	case q.Type.IsPerson():
		t = Person()
	case q.Type == domain.TypeCheckboxGroup:
		t = Slice(choiceOf(q))
	case q.Type.HasOptions() || q.Type == domain.TypeDatabaseDropdown:
		t = choiceOf(q)
	default:
		t = Text(q.Rules)
	}
	if q.Repeatable {
		return Slice(t)
	}
	return t
}

func choiceOf(q domain.Question) Type {
	values := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		values = append(values, o.Value)
	}
	return Choice(values...)
}
