package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
)

// Rebuilder is the part of the tower service the rebuild activities drive.
type Rebuilder interface {
	RebuildBoundaries(ctx context.Context) (int, error)
	Reload(ctx context.Context, trigger string) (int, error)
}

// RebuildActivities holds the activity implementations for the coverage rebuild workflow.
type RebuildActivities struct {
	Towers Rebuilder
}

// RebuildBoundaries recomputes every active tower's boundary and returns how many changed.
func (a *RebuildActivities) RebuildBoundaries(ctx context.Context) (int, error) {
	n, err := a.Towers.RebuildBoundaries(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuild boundaries: %w", err)
	}
	activity.GetLogger(ctx).Info("boundaries rebuilt", "rewritten", n)
	return n, nil
}

// ReloadIndex refreshes the worker's index from the store and returns its size.
func (a *RebuildActivities) ReloadIndex(ctx context.Context) (int, error) {
	n, err := a.Towers.Reload(ctx, "workflow")
	if err != nil {
		return 0, fmt.Errorf("reload index: %w", err)
	}
	return n, nil
}
