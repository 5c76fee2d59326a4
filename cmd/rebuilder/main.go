package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/towerlocator/internal/app"
	"github.com/samirrijal/towerlocator/internal/pkg/config"
	"github.com/samirrijal/towerlocator/internal/pkg/logging"
	"github.com/samirrijal/towerlocator/internal/workflows"
)

// Usage:
//
//	rebuilder worker
//	rebuilder start -reason segments-changed [-interval 6h]
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("towerlocator-rebuilder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	mode, args := "worker", []string{}
	if len(os.Args) > 1 {
		mode, args = os.Args[1], os.Args[2:]
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch mode {
	case "worker":
		runWorker(c, cfg)
	case "start":
		start(c, cfg, args)
	default:
		log.Fatalf("unknown mode %q (want worker or start)", mode)
	}
}

func runWorker(c client.Client, cfg *config.Config) {
	ctx := context.Background()
	// Rewritten towers are published so API replicas reload their index.
	rt, err := app.Open(ctx, cfg, app.Options{Events: true})
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer rt.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.CoverageRebuildWorkflow)
	w.RegisterActivity(&workflows.RebuildActivities{Towers: rt.Towers})

	slog.Info("rebuild worker started", "task_queue", cfg.Temporal.TaskQueue, "instance", rt.InstanceID)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func start(c client.Client, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	reason := fs.String("reason", "manual", "why the rebuild runs")
	interval := fs.Duration("interval", 0, "repeat interval; zero runs once")
	wait := fs.Bool("wait", true, "wait for a one-shot rebuild to finish")
	_ = fs.Parse(args)

	opts := client.StartWorkflowOptions{
		ID:        "coverage-rebuild-" + time.Now().UTC().Format("20060102T150405"),
		TaskQueue: cfg.Temporal.TaskQueue,
	}
	if *interval > 0 {
		opts.ID = "coverage-rebuild-periodic"
	}

	ctx := context.Background()
	run, err := c.ExecuteWorkflow(ctx, opts, workflows.CoverageRebuildWorkflow, workflows.RebuildInput{
		Reason:   *reason,
		Interval: *interval,
	})
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}
	slog.Info("rebuild started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	if *interval > 0 || !*wait {
		return
	}
	var res workflows.RebuildResult
	if err := run.Get(ctx, &res); err != nil {
		log.Fatalf("rebuild failed: %v", err)
	}
	slog.Info("rebuild finished", "rewritten", res.Rewritten, "indexed", res.Indexed)
}
