// Package schema checks the shape of answers against their questions.
//
// Each question type maps to a Type: free text is a string bounded by the
// question's validation rules, choice questions accept only their option
// values, dates must parse, person questions take a record or a reference.
// Repeatable questions wrap the element type in a Slice.
//
// Basic usage:
//
//	s := schema.ForQuestions("household", group.Questions)
//	if err := schema.Validate(s, answers); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        // each e is a *domain.AnswerTypeError
//	    }
//	}
//
// Types can also be composed by hand:
//
//	s := schema.Schema{
//	    "pets.name": schema.Text(nil),
//	    "pets.tags": schema.Slice(schema.Choice("cat", "dog")),
//	}
//
// Missing or empty answers are not type errors; required answers are
// enforced by the session runtime.
package schema
