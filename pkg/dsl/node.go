package dsl

import "github.com/aretw0/arbor/pkg/domain"

// QuestionBuilder provides a fluent API for configuring a question.
type QuestionBuilder struct {
	question domain.Question
	scope    *Scope
	index    int
}

// ID overrides the persisted id assigned by the builder.
func (q *QuestionBuilder) ID(id string) *QuestionBuilder {
	q.question.ID = id
	return q
}

// Text sets the prompt.
func (q *QuestionBuilder) Text(text string) *QuestionBuilder {
	q.question.Text = text
	return q
}

// Help sets the help text shown under the prompt.
func (q *QuestionBuilder) Help(text string) *QuestionBuilder {
	q.question.HelpText = text
	return q
}

// Type sets the question type.
func (q *QuestionBuilder) Type(t domain.QuestionType) *QuestionBuilder {
	q.question.Type = t
	return q
}

// Choice makes the question a multiple choice over values, labelled by value.
func (q *QuestionBuilder) Choice(values ...string) *QuestionBuilder {
	q.question.Type = domain.TypeMultipleChoice
	return q.Options(values...)
}

// Options sets the option list, labelled by value.
func (q *QuestionBuilder) Options(values ...string) *QuestionBuilder {
	q.question.Options = q.question.Options[:0]
	for _, v := range values {
		q.question.Options = append(q.question.Options, domain.Option{Value: v, Label: v})
	}
	return q
}

// Required marks the question as mandatory.
func (q *QuestionBuilder) Required() *QuestionBuilder {
	q.question.Required = true
	return q
}

// Repeatable lets the question be answered several times, grouped under groupID.
func (q *QuestionBuilder) Repeatable(groupID string) *QuestionBuilder {
	q.question.Repeatable = true
	q.question.RepeatableGroupID = groupID
	return q
}

// Rules constrains free text answers.
func (q *QuestionBuilder) Rules(minLength, maxLength int, pattern string) *QuestionBuilder {
	q.question.Rules = &domain.ValidationRules{MinLength: minLength, MaxLength: maxLength, Pattern: pattern}
	return q
}

// Display sets rendering hints.
func (q *QuestionBuilder) Display(meta domain.DisplayMeta) *QuestionBuilder {
	q.question.Display = meta
	return q
}

// StopFlow halts evaluation right after this question.
func (q *QuestionBuilder) StopFlow() *QuestionBuilder {
	(*q.scope.items)[q.index].StopFlow = true
	return q
}

// ConditionalBuilder configures a conditional block.
type ConditionalBuilder struct {
	cond  *domain.Conditional
	scope *Scope
}

// Then populates the nested items.
func (c *ConditionalBuilder) Then(fn func(s *Scope)) *ConditionalBuilder {
	fn(c.scope)
	return c
}

// EndFlow halts evaluation after the nested items when the condition holds.
func (c *ConditionalBuilder) EndFlow() *ConditionalBuilder {
	c.cond.EndFlow = true
	return c
}

// StopFlow halts evaluation as soon as the condition holds.
func (c *ConditionalBuilder) StopFlow() *ConditionalBuilder {
	c.cond.StopFlow = true
	return c
}
