/*
Package dsl provides a fluent Go DSL for constructing Arbor groups.

It lets developers describe questions and their conditional logic in code
instead of YAML or JSON files. This is particularly useful for unit tests,
fixtures and programmatically generated questionnaires.

Example usage:

	b := dsl.New("household")

	b.Question("has_pet").
		Text("Do you have a pet?").
		Choice("yes", "no").
		Required()

	b.If("has_pet", domain.OpEquals, "yes").Then(func(s *dsl.Scope) {
		s.Question("pet_name").Text("What is its name?")
	})

	// The resulting loader can be used as a ports.GroupLoader
	loader, err := b.Build()
*/
package dsl
