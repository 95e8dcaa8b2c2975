package repeat

import "github.com/aretw0/arbor/pkg/domain"

// Resolver finds the question a tree reference points at.
type Resolver interface {
	Resolve(ref domain.QuestionRef) (domain.Question, bool)
}

// ItemsFromTree flattens a tree into resolver input. Questions that cannot
// be resolved are treated as non-repeatable.
func ItemsFromTree(tree domain.Tree, src Resolver) []Item {
	flat := tree.Flatten()
	items := make([]Item, 0, len(flat))
	for _, f := range flat {
		it := Item{
			Key:      f.Node.NodeID,
			Parent:   f.Parent,
			Depth:    f.Node.Depth,
			Question: f.Node.IsQuestion(),
		}
		if it.Question {
			if q, ok := src.Resolve(f.Node.Question); ok {
				it.Key = q.LocalID
				it.Repeatable = q.Repeatable
				it.GroupID = q.RepeatableGroupID
			}
		}
		items = append(items, it)
	}
	return items
}
