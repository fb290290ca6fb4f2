package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/skyhop/internal/adapters/nats"
	"github.com/samirrijal/skyhop/internal/adapters/postgres"
	"github.com/samirrijal/skyhop/internal/core/usecases"
	"github.com/samirrijal/skyhop/internal/pkg/config"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
	"github.com/samirrijal/skyhop/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("skyhop-relay")
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.CollectorAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// The relay is useless without the broker, so connection failure is fatal.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Error("nats", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	relay := usecases.NewOutboxRelay(postgres.NewTxManager(db), pub, cfg.Outbox.BatchSize)

	go db.ReportPoolMetrics(ctx, 15*time.Second)
	go cleanupLoop(ctx, relay, time.Duration(cfg.Outbox.RetentionDays)*24*time.Hour)

	slog.Info("outbox relay started", "poll_interval", cfg.Outbox.PollInterval, "batch_size", cfg.Outbox.BatchSize)
	relay.Run(ctx, cfg.Outbox.PollInterval)
	slog.Info("outbox relay stopped")
}

// cleanupLoop drops published events older than retention once an hour.
func cleanupLoop(ctx context.Context, relay *usecases.OutboxRelay, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := relay.Cleanup(ctx, time.Now().Add(-retention))
			if err != nil {
				slog.Error("outbox cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("outbox cleanup", "deleted", n)
			}
		}
	}
}
