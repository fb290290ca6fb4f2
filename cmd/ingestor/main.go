package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	natsadapter "github.com/samirrijal/skyhop/internal/adapters/nats"
	"github.com/samirrijal/skyhop/internal/adapters/postgres"
	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/pkg/config"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("skyhop-ingestor")
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// Load manifest: a local path or an http(s) URL
	source := "timetable.json"
	if len(os.Args) > 1 {
		source = os.Args[1]
	}
	data, err := readSource(ctx, source)
	if err != nil {
		slog.Error("read manifest", "source", source, "error", err)
		os.Exit(1)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		slog.Error("parse manifest", "source", source, "error", err)
		os.Exit(1)
	}

	// Filter vehicles (optional CLI arg: comma-separated vehicle IDs)
	if len(os.Args) > 2 {
		manifest = manifest.Only(strings.Split(os.Args[2], ","))
	}
	slog.Info("timetable import starting", "vehicles", len(manifest.Vehicles), "source", manifest.Source)

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := postgres.NewTimetableRepo(db)

	// Fleet updates are best effort: subscribers also expire cached routes on
	// their own TTL.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, caches will refresh on ttl", "error", err)
	} else {
		defer pub.Close()
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	sem := make(chan struct{}, 4) // max 4 concurrent vehicle upserts

	for _, entry := range manifest.Vehicles {
		wg.Add(1)
		go func(e VehicleEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importVehicle(ctx, repo, pub, e); err != nil {
				slog.Error("vehicle import failed", "vehicle_id", e.ID, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(entry)
	}
	wg.Wait()

	if failed > 0 {
		slog.Error("timetable import finished with errors", "failed", failed)
		os.Exit(1)
	}
	slog.Info("timetable import complete")
}

func importVehicle(ctx context.Context, repo *postgres.TimetableRepo, pub *natsadapter.Publisher, e VehicleEntry) error {
	vehicle, segments, err := e.Build()
	if err != nil {
		return err
	}
	if err := repo.UpsertTimetable(ctx, []domain.Vehicle{vehicle}, segments); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	slog.Info("vehicle imported", "vehicle_id", vehicle.ID, "segments", len(segments))

	if pub == nil {
		return nil
	}
	update := &domain.FleetUpdate{VehicleID: vehicle.ID, Kind: "timetable", UpdatedAt: time.Now().UTC()}
	if err := pub.PublishFleetUpdate(ctx, update); err != nil {
		slog.Warn("fleet update publish failed", "vehicle_id", vehicle.ID, "error", err)
	}
	return nil
}

func readSource(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.ReadFile(source)
	}
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, source)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}
