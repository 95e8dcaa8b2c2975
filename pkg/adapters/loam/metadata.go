package loam

// GroupMetadata is the front matter of a question group document.
//
//	---
//	id: intake
//	name: Intake
//	questions:
//	  - identifier: has_pet
//	    question_text: Do you have a pet?
//	    question_type: multiple_choice
//	logic:
//	  - type: question
//	    questionId: has_pet
//	    depth: 0
//	---
//	Optional markdown description.
//
// Questions and logic stay generic here and are decoded into domain types by
// the loader, so the same shape works for markdown, YAML and JSON documents.
type GroupMetadata struct {
	ID          string `json:"id" mapstructure:"id"`
	Identifier  string `json:"identifier" mapstructure:"identifier"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
	Questions   []any  `json:"questions" mapstructure:"questions"`
	Logic       []any  `json:"logic" mapstructure:"logic"`
}
