package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

var errNotConfigured = errors.New("not configured")

// dependencyProbe checks one backing service. Only critical probes can make
// the instance unready.
type dependencyProbe struct {
	name     string
	critical bool
	check    func(ctx context.Context) error
}

type probeResult struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

func readinessProbes(deps *Dependencies) []dependencyProbe {
	return []dependencyProbe{
		{name: "ledger_db", critical: true, check: func(ctx context.Context) error {
			if deps.DB == nil {
				return errNotConfigured
			}
			return deps.DB.Ping(ctx)
		}},
		{name: "event_bus", check: func(ctx context.Context) error {
			if deps.NATS == nil {
				return errNotConfigured
			}
			if !deps.NATS.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}},
		{name: "route_cache", check: func(ctx context.Context) error {
			if deps.Cache == nil {
				return errNotConfigured
			}
			return deps.Cache.Ping(ctx)
		}},
	}
}

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		})
	}
}

// ReadyHandler runs every dependency probe and reports 503 when a critical
// one fails.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	probes := readinessProbes(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]probeResult, len(probes))
		ready := true
		for _, p := range probes {
			start := time.Now()
			err := p.check(ctx)
			r := probeResult{Status: "ok", LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
			if err != nil {
				r.Status, r.Error = "degraded", err.Error()
				if p.critical {
					r.Status = "down"
					ready = false
				}
			}
			results[p.name] = r
		}

		code, status := fiber.StatusOK, "ready"
		if !ready {
			code, status = fiber.StatusServiceUnavailable, "not ready"
		}
		return c.Status(code).JSON(fiber.Map{"status": status, "checks": results})
	}
}
