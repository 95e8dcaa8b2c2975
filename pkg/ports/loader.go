package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// GroupLoader defines how the runtime retrieves groups.
// This allows the storage layer (Loam, Redis, Memory) to be decoupled.
type GroupLoader interface {
	// LoadGroup returns the group with its questions and logic tree.
	// Returns domain.ErrGroupNotFound if the group does not exist.
	LoadGroup(ctx context.Context, groupID string) (*domain.Group, error)

	// ListGroups returns the ids of every available group.
	ListGroups(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that receives the id of every group that changed.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
