package registry

import (
	"fmt"
	"regexp"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/go-playground/validator/v10"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return domain.QuestionType(fl.Field().String()).Valid()
	})
	return v
}

// ValidateQuestion checks the field rules of a question.
func ValidateQuestion(q domain.Question) error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	if q.Rules != nil {
		if q.Rules.MaxLength > 0 && q.Rules.MinLength > q.Rules.MaxLength {
			return fmt.Errorf("%w: min_length exceeds max_length", domain.ErrInvalidQuestion)
		}
		if q.Rules.Pattern != "" {
			if _, err := regexp.Compile(q.Rules.Pattern); err != nil {
				return fmt.Errorf("%w: pattern: %v", domain.ErrInvalidQuestion, err)
			}
		}
	}
	return nil
}

// Validate checks a registered question.
func (r *Registry) Validate(localID string) error {
	q, ok := r.Get(localID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, localID)
	}
	return ValidateQuestion(q)
}
