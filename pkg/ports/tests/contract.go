package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// GroupLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.GroupLoader.
// expected maps group ids to the number of questions each group holds.
func GroupLoaderContractTest(t *testing.T, loader ports.GroupLoader, expected map[string]int) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadGroup_Success", func(t *testing.T) {
		for id, count := range expected {
			group, err := loader.LoadGroup(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error loading group %s: %v", id, err)
			}
			if len(group.Questions) != count {
				t.Errorf("group %s: got %d questions, want %d", id, len(group.Questions), count)
			}
			if err := group.Logic.CheckDepths(); err != nil {
				t.Errorf("group %s: %v", id, err)
			}
		}
	})

	t.Run("LoadGroup_NotFound", func(t *testing.T) {
		_, err := loader.LoadGroup(ctx, "non-existent-group")
		if !errors.Is(err, domain.ErrGroupNotFound) {
			t.Errorf("expected ErrGroupNotFound, got %v", err)
		}
	})

	t.Run("ListGroups", func(t *testing.T) {
		groups, err := loader.ListGroups(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing groups: %v", err)
		}

		found := make(map[string]bool)
		for _, g := range groups {
			found[g] = true
		}
		for id := range expected {
			if !found[id] {
				t.Errorf("ListGroups missing %s", id)
			}
		}
	})
}
