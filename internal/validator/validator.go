package validator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
)

// Severity grades an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single finding about a group.
type Issue struct {
	GroupID  string   `json:"group_id"`
	Severity Severity `json:"severity"`
	// Subject is the question identifier or node id the issue is about.
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Subject == "" {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.GroupID, i.Message)
	}
	return fmt.Sprintf("[%s] %s/%s: %s", i.Severity, i.GroupID, i.Subject, i.Message)
}

// Report collects the issues of one or more groups.
type Report struct {
	Groups int     `json:"groups"`
	Issues []Issue `json:"issues"`
}

// Errors returns the issues of error severity.
func (r Report) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Err summarizes the error issues, or returns nil when there are none.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, issue := range errs {
		lines[i] = issue.String()
	}
	return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(lines, "\n- "))
}

// ValidateAll loads every group of loader and checks it. Groups that fail to
// load are reported as errors rather than aborting the run.
func ValidateAll(ctx context.Context, loader ports.GroupLoader) (Report, error) {
	ids, err := loader.ListGroups(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list groups: %w", err)
	}
	report := Report{Groups: len(ids), Issues: []Issue{}}
	for _, id := range ids {
		g, err := loader.LoadGroup(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			report.Issues = append(report.Issues, Issue{GroupID: id, Severity: SeverityError, Message: err.Error()})
			continue
		}
		report.Issues = append(report.Issues, ValidateGroup(g)...)
	}
	return report, nil
}

// ValidateGroup checks questions and logic of a group for problems the
// loader accepts but a respondent would trip over.
func ValidateGroup(g *domain.Group) []Issue {
	c := &checker{g: g}
	c.questions()
	c.tree()
	return c.issues
}

type checker struct {
	g      *domain.Group
	issues []Issue
}

func (c *checker) add(sev Severity, subject, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		GroupID:  c.g.ID,
		Severity: sev,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) questions() {
	seen := make(map[string]string)
	for _, q := range c.g.Questions {
		if err := registry.ValidateQuestion(q); err != nil {
			c.add(SeverityError, q.Identifier, "%v", err)
		}
		key := strings.ToLower(domain.StripNamespace(q.Identifier))
		if other, ok := seen[key]; ok {
			c.add(SeverityError, q.Identifier, "identifier collides with %q", other)
		} else {
			seen[key] = q.Identifier
		}
		if q.Type.HasOptions() && len(q.Options) == 0 {
			c.add(SeverityWarning, q.Identifier, "%s question has no options", q.Type)
		}
		if !q.Repeatable && q.RepeatableGroupID != "" {
			c.add(SeverityWarning, q.Identifier, "repeatable_group_id set on a question that is not repeatable")
		}
	}
}

func (c *checker) tree() {
	if err := c.g.Logic.CheckDepths(); err != nil {
		c.add(SeverityError, "", "%v", err)
	}
	if c.g.Logic.IsEmpty() {
		return
	}

	src := flow.QuestionList(c.g.Questions)
	ns := c.g.Namespace()
	placed := make(map[string]bool)
	used := make(map[string]int)

	c.g.Logic.Walk(func(n domain.LogicNode, _ domain.Path, _ int) bool {
		if n.IsQuestion() {
			q, ok := src.Resolve(n.Question)
			if !ok {
				c.add(SeverityError, n.NodeID, "%v: %s", domain.ErrDanglingReference, n.Question)
				return true
			}
			used[q.Identifier]++
			if used[q.Identifier] == 2 {
				c.add(SeverityError, q.Identifier, "question is placed more than once in the tree")
			}
			placed[strings.ToLower(q.Identifier)] = true
			return true
		}
		if n.Cond != nil {
			c.conditional(n, ns, placed)
		}
		return true
	})

	for _, q := range c.g.Questions {
		if used[q.Identifier] == 0 {
			c.add(SeverityWarning, q.Identifier, "question is not placed in the tree and will never be shown")
		}
	}
}

func (c *checker) conditional(n domain.LogicNode, ns string, placed map[string]bool) {
	cond := n.Cond
	op, ok := domain.ParseOperator(string(cond.Operator))
	if !ok {
		c.add(SeverityError, n.NodeID, "unknown operator %q", cond.Operator)
	}
	if op.IsCount() {
		if _, err := strconv.Atoi(strings.TrimSpace(cond.Value)); err != nil {
			c.add(SeverityError, n.NodeID, "%s needs an integer value, got %q", op, cond.Value)
		}
	}
	if cond.IfIdentifier == "" {
		c.add(SeverityError, n.NodeID, "conditional has no identifier")
		return
	}
	if len(cond.NestedItems) == 0 && !cond.EndFlow && !cond.StopFlow {
		c.add(SeverityWarning, n.NodeID, "conditional has no effect: no nested items and no end or stop flow")
	}

	// Identifiers qualified with another group's namespace refer to earlier groups of a flow.
	if prefix, _, found := strings.Cut(cond.IfIdentifier, domain.NamespaceSeparator); found && !strings.EqualFold(prefix, ns) {
		return
	}
	q, ok := c.g.Question(cond.IfIdentifier)
	switch {
	case !ok:
		c.add(SeverityWarning, n.NodeID, "condition reads %q, which is not a question of this group", cond.IfIdentifier)
	case !placed[strings.ToLower(q.Identifier)]:
		c.add(SeverityWarning, n.NodeID, "condition reads %q before it is asked", cond.IfIdentifier)
	}
}
