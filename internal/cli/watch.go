package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/debounce"
	"github.com/aretw0/arbor/internal/validator"
)

// WatchDebounce coalesces the burst of events an editor save produces.
const WatchDebounce = 200 * time.Millisecond

// WatchValidate validates every group once, then re-validates each group
// that changes on disk until ctx is done.
func WatchValidate(ctx context.Context, eng *arbor.Engine, w io.Writer) error {
	_ = Validate(ctx, eng, w, FormatText)

	events, err := eng.Watch(ctx)
	if err != nil {
		return err
	}
	printSystemMessage(w, "Watching for changes (Ctrl+C to stop).")

	var mu sync.Mutex
	d := debounce.NewKeyed(WatchDebounce, func(groupID string) {
		mu.Lock()
		defer mu.Unlock()
		revalidate(ctx, eng, w, groupID)
	})
	defer d.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-events:
			if !ok {
				return nil
			}
			d.Trigger(id)
		}
	}
}

func revalidate(ctx context.Context, eng *arbor.Engine, w io.Writer, groupID string) {
	g, err := eng.LoadGroup(ctx, groupID)
	if err != nil {
		printSystemMessage(w, "%s: %v", groupID, err)
		return
	}
	issues := validator.ValidateGroup(g)
	if len(issues) == 0 {
		printSystemMessage(w, "%s: ok", groupID)
		return
	}
	for _, issue := range issues {
		fmt.Fprintln(w, issue.String())
	}
}
