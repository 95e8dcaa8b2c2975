package domain

// Group is a named set of questions with the logic that orders them.
type Group struct {
	ID          string     `json:"id" yaml:"id"`
	Identifier  string     `json:"identifier" yaml:"identifier"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Questions   []Question `json:"questions" yaml:"questions"`
	Logic       Tree       `json:"logic" yaml:"logic"`
}

// Namespace returns the prefix used to qualify identifiers of the group.
func (g *Group) Namespace() string {
	if g.Identifier != "" {
		return g.Identifier
	}
	return g.ID
}

// EffectiveLogic returns the logic tree, or all questions in order when the
// group has no logic.
func (g *Group) EffectiveLogic() Tree {
	if !g.Logic.IsEmpty() {
		return g.Logic
	}
	return TreeFromQuestions(g.Questions)
}

// Question finds a question by display or qualified identifier.
func (g *Group) Question(identifier string) (Question, bool) {
	for _, q := range g.Questions {
		if SameIdentifier(q.Identifier, identifier) {
			return q, true
		}
	}
	return Question{}, false
}
