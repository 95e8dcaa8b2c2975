package domain

// QuestionType is the widget used to collect an answer.
type QuestionType string

const (
	TypeFreeText         QuestionType = "free_text"
	TypeMultipleChoice   QuestionType = "multiple_choice"
	TypeCheckboxGroup    QuestionType = "checkbox_group"
	TypeDropdown         QuestionType = "dropdown"
	TypeDatabaseDropdown QuestionType = "database_dropdown"
	TypePerson           QuestionType = "person"
	TypePersonBackup     QuestionType = "person_backup"
	TypeDate             QuestionType = "date"
)

// QuestionTypes lists every known question type in display order.
var QuestionTypes = []QuestionType{
	TypeFreeText,
	TypeMultipleChoice,
	TypeCheckboxGroup,
	TypeDropdown,
	TypeDatabaseDropdown,
	TypePerson,
	TypePersonBackup,
	TypeDate,
}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// HasOptions reports whether the type renders a fixed list of options.
func (t QuestionType) HasOptions() bool {
	switch t {
	case TypeMultipleChoice, TypeCheckboxGroup, TypeDropdown:
		return true
	}
	return false
}

// IsPerson reports whether the answer is a person record.
func (t QuestionType) IsPerson() bool {
	return t == TypePerson || t == TypePersonBackup
}

// Option is a selectable value of a choice question.
type Option struct {
	Value string `json:"value" yaml:"value" mapstructure:"value" validate:"required"`
	Label string `json:"label" yaml:"label" mapstructure:"label" validate:"required"`
}

const (
	PersonDisplayAutocomplete = "autocomplete"
	PersonDisplayDropdown     = "dropdown"
)

// DisplayMeta carries rendering hints that do not affect evaluation.
type DisplayMeta struct {
	PersonDisplayMode string `json:"person_display_mode,omitempty" yaml:"person_display_mode,omitempty" mapstructure:"person_display_mode" validate:"omitempty,oneof=autocomplete dropdown"`
	IncludeTime       bool   `json:"include_time,omitempty" yaml:"include_time,omitempty" mapstructure:"include_time"`
}

// ValidationRules constrain free text answers.
type ValidationRules struct {
	MinLength int    `json:"min_length,omitempty" yaml:"min_length,omitempty" mapstructure:"min_length" validate:"gte=0"`
	MaxLength int    `json:"max_length,omitempty" yaml:"max_length,omitempty" mapstructure:"max_length" validate:"gte=0"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
}

// Question is a single prompt of a group.
//
// LocalID is assigned on creation and never changes. ID is the persisted
// identity and stays empty until the backend acknowledges the create.
type Question struct {
	ID                string           `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	LocalID           string           `json:"local_id,omitempty" yaml:"local_id,omitempty" mapstructure:"local_id"`
	Text              string           `json:"question_text" yaml:"question_text" mapstructure:"question_text" validate:"required,max=1000"`
	Type              QuestionType     `json:"question_type" yaml:"question_type" mapstructure:"question_type" validate:"required,question_type"`
	Identifier        string           `json:"identifier" yaml:"identifier" mapstructure:"identifier" validate:"required,max=100,identifier"`
	HelpText          string           `json:"help_text,omitempty" yaml:"help_text,omitempty" mapstructure:"help_text"`
	Required          bool             `json:"is_required,omitempty" yaml:"is_required,omitempty" mapstructure:"is_required"`
	Repeatable        bool             `json:"repeatable,omitempty" yaml:"repeatable,omitempty" mapstructure:"repeatable"`
	RepeatableGroupID string           `json:"repeatable_group_id,omitempty" yaml:"repeatable_group_id,omitempty" mapstructure:"repeatable_group_id"`
	Options           []Option         `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options" validate:"dive"`
	Display           DisplayMeta      `json:"display,omitempty" yaml:"display,omitempty" mapstructure:"display"`
	Rules             *ValidationRules `json:"validation_rules,omitempty" yaml:"validation_rules,omitempty" mapstructure:"validation_rules"`
}

// Saved reports whether the backend has acknowledged the question.
func (q Question) Saved() bool { return q.ID != "" }

// Ref returns the strongest reference available for the question.
func (q Question) Ref() QuestionRef {
	if q.ID != "" {
		return Resolved(q.ID)
	}
	return Unresolved(q.LocalID)
}

// Matches reports whether ref points at q.
func (q Question) Matches(ref QuestionRef) bool {
	if id, ok := ref.PersistedID(); ok {
		return q.ID != "" && q.ID == id
	}
	if local, ok := ref.LocalID(); ok {
		return q.LocalID != "" && q.LocalID == local
	}
	return false
}

// Clone returns a deep copy of q.
func (q Question) Clone() Question {
	if q.Options != nil {
		q.Options = append([]Option(nil), q.Options...)
	}
	if q.Rules != nil {
		rules := *q.Rules
		q.Rules = &rules
	}
	return q
}

// QuestionPatch is a partial update of a question's content fields.
// Nil fields are left untouched.
type QuestionPatch struct {
	Text              *string          `json:"question_text,omitempty"`
	Type              *QuestionType    `json:"question_type,omitempty"`
	Identifier        *string          `json:"identifier,omitempty"`
	HelpText          *string          `json:"help_text,omitempty"`
	Required          *bool            `json:"is_required,omitempty"`
	Repeatable        *bool            `json:"repeatable,omitempty"`
	RepeatableGroupID *string          `json:"repeatable_group_id,omitempty"`
	Options           *[]Option        `json:"options,omitempty"`
	Display           *DisplayMeta     `json:"display,omitempty"`
	Rules             *ValidationRules `json:"validation_rules,omitempty"`
}

// PatchFrom builds a patch that overwrites every content field with q's values.
func PatchFrom(q Question) QuestionPatch {
	q = q.Clone()
	opts := q.Options
	return QuestionPatch{
		Text:              &q.Text,
		Type:              &q.Type,
		Identifier:        &q.Identifier,
		HelpText:          &q.HelpText,
		Required:          &q.Required,
		Repeatable:        &q.Repeatable,
		RepeatableGroupID: &q.RepeatableGroupID,
		Options:           &opts,
		Display:           &q.Display,
		Rules:             q.Rules,
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p QuestionPatch) IsEmpty() bool {
	return p.Text == nil && p.Type == nil && p.Identifier == nil &&
		p.HelpText == nil && p.Required == nil && p.Repeatable == nil &&
		p.RepeatableGroupID == nil && p.Options == nil && p.Display == nil &&
		p.Rules == nil
}

// Apply returns a copy of q with the patch applied.
func (p QuestionPatch) Apply(q Question) Question {
	q = q.Clone()
	if p.Text != nil {
		q.Text = *p.Text
	}
	if p.Type != nil {
		q.Type = *p.Type
	}
	if p.Identifier != nil {
		q.Identifier = *p.Identifier
	}
	if p.HelpText != nil {
		q.HelpText = *p.HelpText
	}
	if p.Required != nil {
		q.Required = *p.Required
	}
	if p.Repeatable != nil {
		q.Repeatable = *p.Repeatable
	}
	if p.RepeatableGroupID != nil {
		q.RepeatableGroupID = *p.RepeatableGroupID
	}
	if p.Options != nil {
		q.Options = append([]Option(nil), (*p.Options)...)
	}
	if p.Display != nil {
		q.Display = *p.Display
	}
	if p.Rules != nil {
		rules := *p.Rules
		q.Rules = &rules
	}
	return q
}
