package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
	"github.com/google/uuid"
)

// RunOptions configures an interactive session.
type RunOptions struct {
	Options
	SessionID string
	// Groups is the ordered flow of a new session. Empty means every group.
	Groups   []string
	Headless bool
	// JSON drives the session with JSON Lines commands instead of prompts.
	JSON bool
	// Fresh discards a stored session with the same id before starting.
	Fresh bool
}

// Execute runs an interactive session on the terminal until it completes or
// is interrupted.
func Execute(opts RunOptions) error {
	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	cfg, err := LoadConfig(opts.Options)
	if err != nil {
		return err
	}
	stack, err := createEngine(ctx, cfg, quietLogger(opts.Debug))
	if err != nil {
		return err
	}
	defer stack.Close()

	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.JSON {
		opts.Headless = true
	}
	interactive := !opts.Headless && tui.IsTerminal(os.Stdout)
	if interactive {
		tui.PrintBanner(os.Stdout, arbor.Version)
	}

	// Stdin reads cannot be cancelled, so an interrupt abandons the runner
	// instead of waiting for it.
	done := make(chan error, 1)
	go func() {
		done <- RunSession(ctx, stack.Engine, os.Stdin, os.Stdout, opts, interactive)
	}()

	select {
	case err := <-done:
		return handleExecutionError(err)
	case <-ctx.Done():
		if !opts.Headless {
			fmt.Println()
			printSystemMessage(os.Stdout, "Interrupted. Resume with --session %s", opts.SessionID)
		}
		return nil
	}
}

// RunSession opens (or resumes) a session and walks it over in and out.
// rich enables markdown rendering of question text.
func RunSession(ctx context.Context, eng *arbor.Engine, in io.Reader, out io.Writer, opts RunOptions, rich bool) error {
	if opts.JSON {
		opts.Headless = true
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Fresh {
		if err := eng.Sessions().Delete(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to reset session: %w", err)
		}
	}

	groups := opts.Groups
	if len(groups) == 0 {
		ids, err := eng.ListGroups(ctx)
		if err != nil {
			return err
		}
		groups = ids
	}
	if len(groups) == 0 {
		return fmt.Errorf("no groups found in %s", opts.Dir)
	}

	s, err := eng.OpenSession(ctx, opts.SessionID, groups...)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	if !opts.Headless {
		printSystemMessage(out, "Session '%s' active.", s.ID())
	}

	if opts.JSON {
		return runner.NewJSONHandler(in, out).Run(ctx, s)
	}

	r := arbor.NewRunner(in, out)
	r.Headless = opts.Headless
	if rich {
		r.Renderer = tui.NewRenderer()
	}
	if err := r.Run(ctx, s); err != nil {
		return err
	}
	if !opts.Headless && s.Status() != domain.StatusCompleted {
		printSystemMessage(out, "Saved. Resume with --session %s", s.ID())
	}
	return nil
}
