package schema

import (
	"errors"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
)

func householdQuestions() []domain.Question {
	return []domain.Question{
		{Identifier: "name", Type: domain.TypeFreeText, Rules: &domain.ValidationRules{MaxLength: 10}},
		{Identifier: "born", Type: domain.TypeDate},
		{Identifier: "pet", Type: domain.TypeDropdown, Options: []domain.Option{{Value: "cat"}, {Value: "dog"}}},
		{Identifier: "child", Type: domain.TypeFreeText, Repeatable: true},
	}
}

func TestForQuestions_QualifiesKeys(t *testing.T) {
	s := ForQuestions("household", householdQuestions())

	for _, key := range []string{"household.name", "household.born", "household.pet", "household.child"} {
		if _, ok := s[key]; !ok {
			t.Errorf("schema missing %s", key)
		}
	}
}

func TestValidate_Success(t *testing.T) {
	s := ForQuestions("household", householdQuestions())
	answers := domain.Answers{
		"household.name":  "Ada",
		"household.born":  "1990-12-10",
		"household.pet":   "cat",
		"household.child": []any{"Tom", ""},
	}

	if err := Validate(s, answers); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_SkipsMissingAndEmpty(t *testing.T) {
	s := ForQuestions("household", householdQuestions())
	answers := domain.Answers{
		"household.name": "  ",
		"unrelated":      42,
	}

	if err := Validate(s, answers); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_AcceptsBareKeys(t *testing.T) {
	s := ForQuestions("household", householdQuestions())
	answers := domain.Answers{"pet": "hamster"}

	err := Validate(s, answers)
	if err == nil {
		t.Fatal("Validate() should reject an unknown option under a bare key")
	}
}

func TestValidate_CollectsEveryFailure(t *testing.T) {
	s := ForQuestions("household", householdQuestions())
	answers := domain.Answers{
		"household.name":  "A very long name",
		"household.born":  "yesterday",
		"household.pet":   "cat",
		"household.child": "not a list",
	}

	err := Validate(s, answers)
	if err == nil {
		t.Fatal("Validate() should return error")
	}

	errs := ValidationErrors(err)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), err)
	}

	var typeErr *domain.AnswerTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("error should wrap *domain.AnswerTypeError, got %T", err)
	}
	// Keys are checked in sorted order.
	if typeErr.Identifier != "household.born" {
		t.Errorf("first failure = %s, want household.born", typeErr.Identifier)
	}
}

func TestValidateFields(t *testing.T) {
	s := ForQuestions("household", householdQuestions())
	answers := domain.Answers{
		"household.name": "A very long name",
		"household.pet":  "snake",
	}

	err := ValidateFields(s, answers, "household.pet", "household.unknown")
	errs := ValidationErrors(err)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), err)
	}

	if err := ValidateFields(s, answers); err != nil {
		t.Errorf("ValidateFields() with no keys = %v, want nil", err)
	}
}

func TestValidateAnswer(t *testing.T) {
	q := domain.Question{Identifier: "born", Type: domain.TypeDate}

	if err := ValidateAnswer(q, ""); err != nil {
		t.Errorf("empty answer: %v", err)
	}
	if err := ValidateAnswer(q, "2020-01-01"); err != nil {
		t.Errorf("valid answer: %v", err)
	}

	err := ValidateAnswer(q, "soon")
	var typeErr *domain.AnswerTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected *domain.AnswerTypeError, got %T", err)
	}
	if typeErr.Type != domain.TypeDate {
		t.Errorf("Type = %s, want %s", typeErr.Type, domain.TypeDate)
	}
}

func TestValidationErrors_NonAggregate(t *testing.T) {
	if errs := ValidationErrors(errors.New("plain")); errs != nil {
		t.Errorf("ValidationErrors(plain) = %v, want nil", errs)
	}
}
