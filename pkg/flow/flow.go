package flow

import (
	"sort"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/repeat"
)

// DefaultPageSize is used when the caller passes a non-positive page size.
const DefaultPageSize = 5

// Source resolves tree references to questions.
type Source interface {
	Resolve(ref domain.QuestionRef) (domain.Question, bool)
}

// QuestionList is a Source over a fixed slice of questions.
type QuestionList []domain.Question

// Resolve implements Source.
func (l QuestionList) Resolve(ref domain.QuestionRef) (domain.Question, bool) {
	for _, q := range l {
		if q.Matches(ref) {
			return q, true
		}
	}
	return domain.Question{}, false
}

// Item is a question as presented to the respondent.
type Item struct {
	Question   domain.Question   `json:"question"`
	Identifier domain.Identifier `json:"identifier"`
	NodeID     string            `json:"node_id"`
	Depth      int               `json:"depth"`
	// Set is the index of the repeatable set, or -1.
	Set int `json:"set"`
	// Instance is the 0-based instance within the set.
	Instance int `json:"instance"`
	// Answer is the current value for this question and instance.
	Answer any `json:"answer,omitempty"`
}

// Result is the outcome of an evaluation.
type Result struct {
	// Items is the requested page.
	Items []Item `json:"items"`
	// Visible is every emitted item across all pages.
	Visible      []Item       `json:"-"`
	Sets         []repeat.Set `json:"sets,omitempty"`
	Dependencies []string     `json:"dependencies"`
	Page         int          `json:"page"`
	PageSize     int          `json:"page_size"`
	TotalPages   int          `json:"total_pages"`
	TotalItems   int          `json:"total_items"`
	Halted       bool         `json:"halted"`
	CanGoBack    bool         `json:"can_go_back"`
	IsLastPage   bool         `json:"is_last_page"`
}

// Option configures an evaluation.
type Option func(*options)

type options struct {
	namespace string
}

// WithNamespace sets the group identifier used to qualify answer keys.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

type emitted struct {
	q      domain.Question
	node   domain.LogicNode
	parent string
}

type walker struct {
	src     Source
	answers domain.Answers
	ns      string
	seen    map[string]bool
	out     []emitted
}

// Evaluate walks the tree, expands repeatable sets and returns the
// requested page. page is 1-indexed and clamped to the available range.
func Evaluate(tree domain.Tree, src Source, answers domain.Answers, page, pageSize int, opts ...Option) Result {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	w := &walker{src: src, answers: answers, ns: o.namespace, seen: make(map[string]bool)}
	halted := w.walk(tree.Items, "")

	sets := repeat.ResolveSets(w.items())
	visible := expand(w.out, sets, answers, o.namespace)

	res := Result{
		Visible:      visible,
		Sets:         sets,
		Dependencies: Dependencies(tree),
		Halted:       halted,
	}
	paginate(&res, page, pageSize)
	return res
}

// walk emits visible questions in order and reports whether evaluation halted.
func (w *walker) walk(items []domain.LogicNode, parent string) bool {
	for _, n := range items {
		switch {
		case n.IsQuestion():
			q, ok := w.src.Resolve(n.Question)
			if !ok {
				continue
			}
			key := q.LocalID
			if key == "" {
				key = n.Question.Key()
			}
			if w.seen[key] {
				continue
			}
			w.seen[key] = true
			w.out = append(w.out, emitted{q: q, node: n, parent: parent})
			if n.StopFlow {
				return true
			}
		case n.IsConditional():
			if !Holds(*n.Cond, w.answers, w.ns) {
				continue
			}
			if w.walk(n.Cond.NestedItems, n.NodeID) {
				return true
			}
			if n.Cond.EndFlow || n.Cond.StopFlow {
				return true
			}
		}
	}
	return false
}

func (w *walker) items() []repeat.Item {
	items := make([]repeat.Item, len(w.out))
	for i, e := range w.out {
		items[i] = repeat.Item{
			Key:        e.node.NodeID,
			Parent:     e.parent,
			Depth:      e.node.Depth,
			Question:   true,
			Repeatable: e.q.Repeatable,
			GroupID:    e.q.RepeatableGroupID,
		}
	}
	return items
}

// expand lays repeatable sets out instance-major: every member of instance
// 0, then every member of instance 1, and so on.
func expand(out []emitted, sets []repeat.Set, answers domain.Answers, ns string) []Item {
	starts := make(map[int]int, len(sets))
	for i, s := range sets {
		starts[s.StartIndex] = i
	}

	items := make([]Item, 0, len(out))
	for i := 0; i < len(out); {
		s, ok := starts[i]
		if !ok {
			items = append(items, newItem(out[i], ns, -1, 0, lookup(answers, ns, out[i].q)))
			i++
			continue
		}
		members := out[i : i+sets[s].Len()]
		count := instanceCount(members, answers, ns)
		for inst := 0; inst < count; inst++ {
			for _, m := range members {
				items = append(items, newItem(m, ns, s, inst, entry(lookup(answers, ns, m.q), inst)))
			}
		}
		i += len(members)
	}
	return items
}

func newItem(e emitted, ns string, set, instance int, answer any) Item {
	return Item{
		Question:   e.q,
		Identifier: domain.NewIdentifier(ns, e.q.Identifier),
		NodeID:     e.node.NodeID,
		Depth:      e.node.Depth,
		Set:        set,
		Instance:   instance,
		Answer:     answer,
	}
}

func lookup(answers domain.Answers, ns string, q domain.Question) any {
	v, _ := answers.Lookup(ns, q.Identifier)
	return v
}

// instanceCount is the longest answer list among the members, at least one.
func instanceCount(members []emitted, answers domain.Answers, ns string) int {
	count := 1
	for _, m := range members {
		raw := lookup(answers, ns, m.q)
		if list, ok := domain.AsList(raw); ok && len(list) > count {
			count = len(list)
		}
	}
	return count
}

func entry(raw any, instance int) any {
	if list, ok := domain.AsList(raw); ok {
		if instance < len(list) {
			return list[instance]
		}
		return ""
	}
	if instance == 0 && raw != nil {
		return raw
	}
	return ""
}

func paginate(res *Result, page, pageSize int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(res.Visible)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	res.Items = res.Visible[start:end]
	res.Page = page
	res.PageSize = pageSize
	res.TotalPages = totalPages
	res.TotalItems = total
	res.CanGoBack = page > 1
	res.IsLastPage = page == totalPages
}

// Dependencies returns the sorted, distinct identifiers referenced by any
// conditional of the tree, visible or not.
func Dependencies(tree domain.Tree) []string {
	seen := make(map[string]bool)
	deps := []string{}
	tree.Walk(func(n domain.LogicNode, _ domain.Path, _ int) bool {
		if n.IsConditional() && n.Cond.IfIdentifier != "" && !seen[n.Cond.IfIdentifier] {
			seen[n.Cond.IfIdentifier] = true
			deps = append(deps, n.Cond.IfIdentifier)
		}
		return true
	})
	sort.Strings(deps)
	return deps
}

// DependsOn reports whether any conditional reads identifier.
func (r Result) DependsOn(identifier string) bool {
	for _, dep := range r.Dependencies {
		if domain.SameIdentifier(dep, identifier) {
			return true
		}
	}
	return false
}

// Instances returns the number of instances rendered for a set.
func (r Result) Instances(set int) int {
	n := 0
	for _, it := range r.Visible {
		if it.Set == set && it.Instance+1 > n {
			n = it.Instance + 1
		}
	}
	return n
}

// InstanceAnswers returns the answers of one instance of a set keyed by
// display identifier.
func (r Result) InstanceAnswers(set, instance int) map[string]any {
	out := make(map[string]any)
	for _, it := range r.Visible {
		if it.Set == set && it.Instance == instance {
			out[it.Identifier.Display] = it.Answer
		}
	}
	return out
}

// SetOf returns the set index of the question with the given identifier.
func (r Result) SetOf(identifier string) (int, bool) {
	for _, it := range r.Visible {
		if domain.SameIdentifier(it.Question.Identifier, identifier) && it.Set >= 0 {
			return it.Set, true
		}
	}
	return -1, false
}

// SetQuestions returns the questions of a set in order.
func (r Result) SetQuestions(set int) []domain.Question {
	var out []domain.Question
	for _, it := range r.Visible {
		if it.Set == set && it.Instance == 0 {
			out = append(out, it.Question)
		}
	}
	return out
}

// WithAnswers returns a copy of the result with every item's answer read
// from answers. Visibility is not recomputed; use it only for edits that
// no conditional depends on.
func (r Result) WithAnswers(answers domain.Answers, ns string) Result {
	visible := make([]Item, len(r.Visible))
	for i, it := range r.Visible {
		raw := lookup(answers, ns, it.Question)
		if it.Set >= 0 {
			it.Answer = entry(raw, it.Instance)
		} else {
			it.Answer = raw
		}
		visible[i] = it
	}
	r.Visible = visible

	start := (r.Page - 1) * r.PageSize
	if start < 0 || start > len(visible) {
		start = len(visible)
	}
	r.Items = visible[start : start+len(r.Items)]
	return r
}

// Flatten lists every question the tree refers to in authoring order,
// ignoring conditionals. Unresolvable references are skipped.
func Flatten(tree domain.Tree, src Source) []domain.Question {
	var out []domain.Question
	seen := make(map[string]bool)
	for _, ref := range tree.QuestionRefs() {
		q, ok := src.Resolve(ref)
		if !ok {
			continue
		}
		key := q.LocalID
		if key == "" {
			key = ref.Key()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
