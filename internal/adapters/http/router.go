package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/skyhop/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	t := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }

	v1 := app.Group("/v1")

	// Public inventory reads; a token only personalises the seat map.
	v1.Get("/segments/:id/availability", deps.Auth.Optional(), t(AvailabilityHandler(deps)))
	v1.Get("/segments/:id/seats", deps.Auth.Optional(), t(SeatMapHandler(deps)))

	authed := v1.Group("", deps.Auth.Middleware())
	authed.Post("/holds", t(PlaceHoldHandler(deps)))
	authed.Delete("/holds", t(ReleaseHoldHandler(deps)))

	authed.Post("/bookings", t(CreateBookingHandler(deps)))
	authed.Get("/bookings", t(ListBookingsHandler(deps)))
	authed.Get("/bookings/pnr/:pnr", t(BookingByPNRHandler(deps)))
	authed.Get("/bookings/:id", t(GetBookingHandler(deps)))
	authed.Post("/bookings/:id/cancel", t(CancelBookingHandler(deps)))
	authed.Get("/bookings/:id/refunds", t(BookingRefundsHandler(deps)))
	authed.Post("/bookings/:id/reschedule/quote", t(RescheduleQuoteHandler(deps)))
	authed.Post("/bookings/:id/reschedule/commit", t(RescheduleCommitHandler(deps)))

	admin := v1.Group("/admin", deps.Auth.Middleware(), RequireAdmin())
	admin.Post("/bookings/:id/cancel", t(AdminCancelHandler(deps)))
	admin.Get("/refunds", t(ListRefundsHandler(deps)))
	admin.Post("/refunds/:id/decision", t(DecideRefundHandler(deps)))
	admin.Post("/refunds/:id/settle", t(SettleRefundHandler(deps)))

	// GraphQL
	app.Post("/graphql", deps.Auth.Optional(), GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, "api/openapi.yaml")

	// WebSocket seat-map push
	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
}
