package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/session"
)

// Actions understood by the JSON handler.
const (
	ActionAnswer  = "answer"
	ActionFocus   = "focus"
	ActionBlur    = "blur"
	ActionForward = "forward"
	ActionBack    = "back"
	ActionAdd     = "add"
	ActionRemove  = "remove"
	ActionSave    = "save"
	ActionView    = "view"
	ActionQuit    = "quit"
)

// Event types.
const (
	EventView      = "view"
	EventError     = "error"
	EventCompleted = "completed"
)

// Command is one line of input.
type Command struct {
	Action     string `json:"action"`
	Identifier string `json:"identifier,omitempty"`
	Value      any    `json:"value,omitempty"`
	// Instance addresses one instance of a repeatable question when set.
	Instance *int `json:"instance,omitempty"`
	// Answers sets several answers at once.
	Answers map[string]any `json:"answers,omitempty"`
	Set     int            `json:"set,omitempty"`
}

// Event is one line of output.
type Event struct {
	Type    string        `json:"type"`
	View    *session.View `json:"view,omitempty"`
	Error   string        `json:"error,omitempty"`
	Missing []string      `json:"missing,omitempty"`
}

// JSONHandler runs a session over JSON Lines.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler reading commands from r and writing
// events to w.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

var errQuit = errors.New("quit")

// Run emits the current view, then applies commands until the session
// completes, a quit command arrives or the input ends. Command errors are
// reported as error events and do not stop the loop.
func (h *JSONHandler) Run(ctx context.Context, s *session.Session) error {
	if err := h.emitView(s.View()); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := h.Reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			done, cmdErr := h.handle(ctx, s, line)
			if errors.Is(cmdErr, errQuit) {
				return nil
			}
			if cmdErr != nil {
				return cmdErr
			}
			if done {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("input error: %w", err)
		}
	}
}

// handle applies one command. The returned error is only set for output
// failures and quit; command failures become error events.
func (h *JSONHandler) handle(ctx context.Context, s *session.Session, line string) (bool, error) {
	var cmd Command
	if err := json.Unmarshal([]byte(line), &cmd); err != nil {
		return false, h.emitError(fmt.Errorf("invalid command: %w", err))
	}

	var err error
	switch cmd.Action {
	case ActionAnswer:
		err = h.answer(ctx, s, cmd)
	case ActionFocus:
		err = s.Focus(cmd.Identifier)
	case ActionBlur:
		err = s.Blur(ctx)
	case ActionForward:
		_, err = s.Forward(ctx)
		if err == nil && s.Status() == domain.StatusCompleted {
			view := s.View()
			return true, h.Encoder.Encode(Event{Type: EventCompleted, View: &view})
		}
	case ActionBack:
		_, err = s.Backward(ctx)
	case ActionAdd:
		_, err = s.AddInstance(ctx, cmd.Set)
	case ActionRemove:
		if cmd.Instance == nil {
			err = errors.New("remove needs an instance")
			break
		}
		_, err = s.RemoveInstance(ctx, cmd.Set, *cmd.Instance)
	case ActionSave:
		err = s.Save(ctx)
	case ActionView:
	case ActionQuit:
		return false, errQuit
	default:
		err = fmt.Errorf("unknown action %q", cmd.Action)
	}

	if err != nil {
		return false, h.emitError(err)
	}
	return false, h.emitView(s.View())
}

func (h *JSONHandler) answer(ctx context.Context, s *session.Session, cmd Command) error {
	answers := cmd.Answers
	if cmd.Identifier != "" {
		if answers == nil {
			answers = map[string]any{}
		}
		answers[cmd.Identifier] = cmd.Value
	}
	if len(answers) == 0 {
		return errors.New("answer needs an identifier or answers")
	}

	for identifier, value := range answers {
		value, err := sanitizeValue(value)
		if err != nil {
			return fmt.Errorf("%s: %w", identifier, err)
		}
		if cmd.Instance != nil && cmd.Identifier == identifier {
			_, err = s.SetInstanceAnswer(ctx, identifier, *cmd.Instance, value)
		} else {
			_, err = s.SetAnswer(ctx, identifier, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func sanitizeValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return SanitizeInput(val)
	case []any:
		out := make([]any, len(val))
		for i, entry := range val {
			clean, err := sanitizeValue(entry)
			if err != nil {
				return nil, err
			}
			out[i] = clean
		}
		return out, nil
	default:
		return v, nil
	}
}

func (h *JSONHandler) emitView(view session.View) error {
	return h.Encoder.Encode(Event{Type: EventView, View: &view})
}

func (h *JSONHandler) emitError(err error) error {
	evt := Event{Type: EventError, Error: err.Error()}
	var missing *domain.ValidationError
	if errors.As(err, &missing) {
		evt.Missing = missing.Missing
	}
	return h.Encoder.Encode(evt)
}
