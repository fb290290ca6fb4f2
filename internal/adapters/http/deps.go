package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/skyhop/internal/adapters/postgres"
	"github.com/samirrijal/skyhop/internal/adapters/valkey"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Inventory     *usecases.InventoryService
	Holds         *usecases.HoldService
	Bookings      *usecases.BookingService
	Cancellations *usecases.CancellationService
	Reschedules   *usecases.RescheduleService
	Auth          *Authenticator
	NATS          *nats.Conn
	DB            *postgres.DB
	Cache         *valkey.Cache
}
