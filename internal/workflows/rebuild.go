package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DefaultTaskQueue is the queue the rebuild worker polls.
const DefaultTaskQueue = "coverage-rebuild"

// maxRunsPerExecution bounds history size of periodic rebuilds before ContinueAsNew.
const maxRunsPerExecution = 100

// RebuildInput is the input for the coverage rebuild workflow.
type RebuildInput struct {
	Reason string
	// Interval repeats the rebuild until cancelled; zero runs it once.
	Interval time.Duration
	// Runs counts rebuilds carried over from earlier executions.
	Runs int
}

// RebuildResult summarises the last rebuild pass.
type RebuildResult struct {
	Rewritten int
	Indexed   int
	Runs      int
}

// CoverageRebuildWorkflow recomputes stored coverage boundaries, for example after
// the segment count changed, then reloads the index. Changed towers are published
// by the service so API replicas reload as well.
func CoverageRebuildWorkflow(ctx workflow.Context, input RebuildInput) (RebuildResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting coverage rebuild", "reason", input.Reason, "interval", input.Interval)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 3,
		},
	})

	var res RebuildResult
	res.Runs = input.Runs
	for i := 0; ; i++ {
		if err := workflow.ExecuteActivity(ctx, "RebuildBoundaries").Get(ctx, &res.Rewritten); err != nil {
			return res, err
		}
		if err := workflow.ExecuteActivity(ctx, "ReloadIndex").Get(ctx, &res.Indexed); err != nil {
			return res, err
		}
		res.Runs++
		logger.Info("Coverage rebuild pass done", "rewritten", res.Rewritten, "indexed", res.Indexed, "runs", res.Runs)

		if input.Interval <= 0 {
			return res, nil
		}
		if i+1 >= maxRunsPerExecution {
			next := input
			next.Runs = res.Runs
			return res, workflow.NewContinueAsNewError(ctx, CoverageRebuildWorkflow, next)
		}
		if err := workflow.Sleep(ctx, input.Interval); err != nil {
			return res, err
		}
	}
}
