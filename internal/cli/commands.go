package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatOutline = "outline"
	FormatMermaid = "mermaid"
)

// Validate checks every group of the engine and writes the report.
// It returns an error when any issue has error severity.
func Validate(ctx context.Context, eng *arbor.Engine, w io.Writer, format string) error {
	report, err := validator.ValidateAll(ctx, eng)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		if report.Issues == nil {
			report.Issues = []validator.Issue{}
		}
		if err := writeJSON(w, report); err != nil {
			return err
		}
		return report.Err()
	}

	for _, issue := range report.Issues {
		fmt.Fprintln(w, issue.String())
	}
	errs := len(report.Errors())
	fmt.Fprintf(w, "%d groups checked, %d errors, %d warnings\n", report.Groups, errs, len(report.Issues)-errs)
	return report.Err()
}

// Tree prints the logic tree of a group as an outline, Mermaid chart or
// YAML/JSON document.
func Tree(ctx context.Context, eng *arbor.Engine, w io.Writer, groupID, format string, style graph.Style) error {
	g, err := eng.LoadGroup(ctx, groupID)
	if err != nil {
		return err
	}

	switch format {
	case "", FormatOutline:
		_, err = io.WriteString(w, graph.Outline(g, style))
	case FormatMermaid:
		_, err = fmt.Fprintln(w, graph.GenerateMermaid(g, nil))
	case FormatJSON:
		err = writeJSON(w, g.EffectiveLogic())
	case FormatYAML:
		err = writeYAML(w, g.EffectiveLogic())
	default:
		err = fmt.Errorf("unknown tree format %q (want outline, mermaid, json or yaml)", format)
	}
	return err
}

// EvaluateOptions selects the answers and page of an evaluation.
type EvaluateOptions struct {
	GroupID string
	// AnswersFile is a YAML or JSON document of answers.
	AnswersFile string
	// Answers is an inline YAML or JSON object, applied over AnswersFile.
	Answers string
	Page    int
	Format  string
}

// Evaluate runs the flow of one group and prints the requested page.
func Evaluate(ctx context.Context, eng *arbor.Engine, w io.Writer, opts EvaluateOptions) error {
	g, err := eng.LoadGroup(ctx, opts.GroupID)
	if err != nil {
		return err
	}
	answers, err := ReadAnswers(opts.AnswersFile, opts.Answers)
	if err != nil {
		return err
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	res, err := eng.Evaluate(ctx, opts.GroupID, qualify(answers, g.Namespace()), page)
	if err != nil {
		return err
	}

	switch opts.Format {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatYAML:
		return writeYAML(w, res)
	default:
		printResult(w, res)
		return nil
	}
}

// ReadAnswers merges the answers of a file and an inline document. Both are
// parsed as YAML, which also accepts JSON.
func ReadAnswers(path, inline string) (domain.Answers, error) {
	answers := domain.Answers{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read answers: %w", err)
		}
		if err := yaml.Unmarshal(data, &answers); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if strings.TrimSpace(inline) != "" {
		var extra domain.Answers
		if err := yaml.Unmarshal([]byte(inline), &extra); err != nil {
			return nil, fmt.Errorf("failed to parse inline answers: %w", err)
		}
		for k, v := range extra {
			answers[k] = v
		}
	}
	return answers, nil
}

// qualify prefixes bare identifiers with the group namespace. Keys of other
// groups are left alone.
func qualify(answers domain.Answers, ns string) domain.Answers {
	out := make(domain.Answers, len(answers))
	for k, v := range answers {
		if !strings.Contains(k, domain.NamespaceSeparator) {
			k = domain.Qualify(ns, k)
		}
		out[k] = v
	}
	return out
}

func printResult(w io.Writer, res flow.Result) {
	fmt.Fprintf(w, "Page %d/%d (%d visible)\n", res.Page, res.TotalPages, res.TotalItems)
	for _, item := range res.Items {
		label := item.Identifier.Display
		if item.Set >= 0 {
			label = fmt.Sprintf("%s #%d", label, item.Instance+1)
		}
		line := fmt.Sprintf("%s- %s: %s", strings.Repeat("  ", item.Depth), label, item.Question.Text)
		if item.Question.Required {
			line += " *"
		}
		if !domain.IsEmptyValue(item.Answer) {
			line += fmt.Sprintf(" = %v", item.Answer)
		}
		fmt.Fprintln(w, line)
	}
	if res.Halted {
		fmt.Fprintln(w, "(flow ends here)")
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML goes through JSON so the field names match the JSON encoding.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
