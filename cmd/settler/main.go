package main

import (
	"context"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/skyhop/internal/adapters/payment"
	"github.com/samirrijal/skyhop/internal/adapters/postgres"
	"github.com/samirrijal/skyhop/internal/core/usecases"
	"github.com/samirrijal/skyhop/internal/pkg/config"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
	"github.com/samirrijal/skyhop/internal/workflows"
)

const sweepWorkflowID = "settlement-sweep"

func main() {
	cfg, err := config.Load("skyhop-settler")
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	txm := postgres.NewTxManager(db)
	resolver := usecases.NewRouteResolver(postgres.NewTimetableRepo(db), nil, 0)
	settings := cfg.Settings()
	gateway := payment.NewGateway(cfg.Payment)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    log.NewStructuredLogger(logger),
	})
	if err != nil {
		slog.Error("temporal client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	// Start the cron sweep once; an already-running schedule is fine.
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           sweepWorkflowID,
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: cfg.Temporal.SweepCron,
	}, workflows.SettlementSweepWorkflow, workflows.SweepInput{BatchSize: 100})
	if err != nil {
		slog.Warn("sweep cron not started", "workflow_id", sweepWorkflowID, "error", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.SettlementSweepWorkflow)
	w.RegisterActivity(&workflows.SettlementActivities{
		Holds:   usecases.NewHoldService(txm, resolver, settings),
		Refunds: usecases.NewCancellationService(txm, resolver, gateway, settings),
	})

	slog.Info("settlement worker started", "task_queue", cfg.Temporal.TaskQueue, "cron", cfg.Temporal.SweepCron)
	if err := w.Run(worker.InterruptCh()); err != nil {
		slog.Error("worker", "error", err)
		os.Exit(1)
	}
}
