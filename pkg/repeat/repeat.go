// Package repeat groups consecutive repeatable questions into sets that are
// answered together, one instance at a time.
package repeat

// Item is one entry of a flattened item list.
type Item struct {
	// Key identifies the question, typically its local id.
	Key string
	// Parent is the id of the enclosing conditional, empty at the root.
	Parent string
	Depth  int
	// Question is false for conditional blocks, which always break a run.
	Question   bool
	Repeatable bool
	// GroupID is the question's repeatable group id; empty joins the current run.
	GroupID string
}

// Set is a run of repeatable questions rendered as one block per instance.
type Set struct {
	// StartIndex is the position of the first member in the input list.
	StartIndex  int
	GroupID     string
	QuestionIDs []string
}

// Len returns the number of questions in the set.
func (s Set) Len() int { return len(s.QuestionIDs) }

// Contains reports whether key is a member of the set.
func (s Set) Contains(key string) bool {
	for _, id := range s.QuestionIDs {
		if id == key {
			return true
		}
	}
	return false
}

// ResolveSets scans items in order and returns the repeatable sets.
//
// A set is a maximal run of consecutive repeatable questions that share a
// parent and a depth. A question carrying a group id different from the
// run's group id starts a new set; a question with no group id joins.
func ResolveSets(items []Item) []Set {
	var (
		sets []Set
		cur  = -1
		prev Item
	)
	for i, it := range items {
		if !it.Question || !it.Repeatable {
			cur = -1
			continue
		}
		if cur >= 0 && continues(sets[cur], prev, it) {
			sets[cur].QuestionIDs = append(sets[cur].QuestionIDs, it.Key)
			if sets[cur].GroupID == "" {
				sets[cur].GroupID = it.GroupID
			}
		} else {
			sets = append(sets, Set{
				StartIndex:  i,
				GroupID:     it.GroupID,
				QuestionIDs: []string{it.Key},
			})
			cur = len(sets) - 1
		}
		prev = it
	}
	return sets
}

func continues(set Set, prev, it Item) bool {
	if prev.Parent != it.Parent || prev.Depth != it.Depth {
		return false
	}
	return it.GroupID == "" || set.GroupID == "" || it.GroupID == set.GroupID
}

// Find returns the index of the set containing key.
func Find(sets []Set, key string) (int, bool) {
	for i, s := range sets {
		if s.Contains(key) {
			return i, true
		}
	}
	return -1, false
}
