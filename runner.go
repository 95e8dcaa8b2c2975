package arbor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
	"github.com/aretw0/arbor/pkg/runner"
	"github.com/aretw0/arbor/pkg/session"
)

// Runner walks a respondent through a session over line-based IO.
// This allows for easy testing and integration with different frontends.
//
// Each visible question is prompted once per page. An empty line keeps the
// current answer. The commands "back", "add <set>", "exit" and "quit" are
// understood at any prompt.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer transforms question text before it is printed.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner over the given IO.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out}
}

var errQuit = errors.New("quit")

// Run prompts until the session completes or the input ends.
func (r *Runner) Run(ctx context.Context, s *session.Session) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)

	if !r.Headless {
		fmt.Fprintln(r.Output, "--- Arbor ---")
	}

	for {
		view := s.View()
		if view.Status == domain.StatusCompleted {
			fmt.Fprintln(r.Output, "All done, thank you!")
			return nil
		}

		err := r.page(ctx, s, lines)
		switch {
		case errors.Is(err, errQuit), errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, errBack):
			if _, err := s.Backward(ctx); err != nil {
				return fmt.Errorf("navigation error: %w", err)
			}
			continue
		case err != nil:
			return err
		}

		_, err = s.Forward(ctx)
		var missing *domain.ValidationError
		switch {
		case errors.As(err, &missing):
			fmt.Fprintf(r.Output, "Please answer: %s\n", strings.Join(missing.Missing, ", "))
		case err != nil:
			return fmt.Errorf("navigation error: %w", err)
		}
	}
}

var errBack = errors.New("back")

// page prompts every item of the current page once. Answers that change the
// flow re-evaluate the page; items already prompted are not asked again.
func (r *Runner) page(ctx context.Context, s *session.Session, lines *bufio.Reader) error {
	asked := make(map[string]bool)
	for {
		view := s.View()
		item, ok := nextItem(view.Page.Items, asked)
		if !ok {
			return nil
		}
		asked[itemKey(item)] = true

		if len(asked) == 1 && !r.Headless {
			fmt.Fprintf(r.Output, "\n## %s (page %d of %d)\n", view.GroupName, view.Page.Page, view.Page.TotalPages)
		}
		r.prompt(item)

		text, err := lines.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("input error: %w", err)
			}
			if text == "" {
				return io.EOF
			}
		}
		input := strings.TrimSpace(text)

		switch {
		case input == "exit" || input == "quit":
			fmt.Fprintln(r.Output, "Bye!")
			return errQuit
		case input == "back":
			return errBack
		case strings.HasPrefix(input, "add "):
			var set int
			if _, err := fmt.Sscanf(input, "add %d", &set); err == nil {
				if _, err := s.AddInstance(ctx, set); err != nil {
					fmt.Fprintf(r.Output, "! %v\n", err)
				}
			}
			delete(asked, itemKey(item))
			continue
		case input == "":
			continue
		}

		if err := r.answer(ctx, s, item, input); err != nil {
			var typeErr *domain.AnswerTypeError
			if !errors.As(err, &typeErr) && !errors.Is(err, runner.ErrInputTooLarge) && !errors.Is(err, runner.ErrInvalidUTF8) {
				return err
			}
			fmt.Fprintf(r.Output, "! %v\n", err)
			delete(asked, itemKey(item))
		}
	}
}

func (r *Runner) prompt(item flow.Item) {
	q := item.Question
	text := q.Text
	if r.Renderer != nil {
		if rendered, err := r.Renderer(text); err == nil {
			text = strings.TrimSpace(rendered)
		}
	}
	label := text
	if item.Set >= 0 {
		label = fmt.Sprintf("%s [%d]", text, item.Instance+1)
	}
	if q.Required {
		label += " *"
	}
	fmt.Fprintln(r.Output, label)
	if q.HelpText != "" && !r.Headless {
		fmt.Fprintf(r.Output, "  (%s)\n", q.HelpText)
	}
	for _, opt := range q.Options {
		fmt.Fprintf(r.Output, "  - %s: %s\n", opt.Value, opt.Label)
	}
	if item.Answer != nil && item.Answer != "" {
		fmt.Fprintf(r.Output, "  current: %v\n", item.Answer)
	}
	fmt.Fprint(r.Output, "> ")
}

func (r *Runner) answer(ctx context.Context, s *session.Session, item flow.Item, input string) error {
	input, err := runner.SanitizeInput(input)
	if err != nil {
		return err
	}
	var value any = input
	if item.Question.Type == domain.TypeCheckboxGroup {
		var picks []any
		for _, part := range strings.Split(input, ",") {
			if part = strings.TrimSpace(part); part != "" {
				picks = append(picks, part)
			}
		}
		value = picks
	}

	if err := s.Focus(item.Identifier.Display); err != nil {
		return err
	}
	if item.Set >= 0 {
		_, err = s.SetInstanceAnswer(ctx, item.Identifier.Display, item.Instance, value)
	} else {
		_, err = s.SetAnswer(ctx, item.Identifier.Display, value)
	}
	if err != nil {
		_ = s.Blur(ctx)
		return err
	}
	return s.Blur(ctx)
}

func nextItem(items []flow.Item, asked map[string]bool) (flow.Item, bool) {
	for _, it := range items {
		if !asked[itemKey(it)] {
			return it, true
		}
	}
	return flow.Item{}, false
}

func itemKey(it flow.Item) string {
	return fmt.Sprintf("%s#%d", it.Identifier.Qualified, it.Instance)
}
