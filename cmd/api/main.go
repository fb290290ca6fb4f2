package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/skyhop/internal/adapters/http"
	natsadapter "github.com/samirrijal/skyhop/internal/adapters/nats"
	"github.com/samirrijal/skyhop/internal/adapters/payment"
	"github.com/samirrijal/skyhop/internal/adapters/postgres"
	"github.com/samirrijal/skyhop/internal/adapters/valkey"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/core/usecases"
	"github.com/samirrijal/skyhop/internal/pkg/config"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
	"github.com/samirrijal/skyhop/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("skyhop-api")
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	// Structured logging
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	if cfg.Auth.JWTSecret == "" || cfg.Payment.KeySecret == "" {
		slog.Error("auth.jwt_secret and payment.key_secret must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.CollectorAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	// Cache (route entries only; the ledger never reads through it)
	var routeCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Namespace)
	if err != nil {
		slog.Warn("valkey unavailable, routes load from the database", "error", err)
	} else {
		defer cache.Close()
		routeCache = cache
	}

	// Services
	txm := postgres.NewTxManager(db)
	resolver := usecases.NewRouteResolver(postgres.NewTimetableRepo(db), routeCache, cfg.Booking.RouteCacheTTL)
	settings := cfg.Settings()
	verifier := payment.NewSignatureVerifier(cfg.Payment.KeySecret)
	gateway := payment.NewGateway(cfg.Payment)

	// Fleet updates invalidate cached routes
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("fleet subscriber unavailable, routes refresh on ttl", "error", err)
	} else {
		defer sub.Close()
		if err := sub.SubscribeFleetUpdates(ctx, resolver.HandleFleetUpdate); err != nil {
			slog.Warn("fleet subscription failed", "error", err)
		}
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	deps := &http.Dependencies{
		Inventory:     usecases.NewInventoryService(txm, resolver, settings),
		Holds:         usecases.NewHoldService(txm, resolver, settings),
		Bookings:      usecases.NewBookingService(txm, resolver, verifier, gateway, settings),
		Cancellations: usecases.NewCancellationService(txm, resolver, gateway, settings),
		Reschedules:   usecases.NewRescheduleService(txm, resolver, verifier, gateway, settings),
		Auth:          http.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		NATS:          natsConn,
		DB:            db,
		Cache:         cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Skyhop API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			slog.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
