package ports

import (
	"context"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// TimetableRepository is the read-only vehicle and timetable registry.
type TimetableRepository interface {
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	GetSegment(ctx context.Context, id string) (*domain.ScheduleSegment, error)
	ListSegmentsByVehicle(ctx context.Context, vehicleID string) ([]domain.ScheduleSegment, error)
}

// TxManager runs units of work against the reservation store. fn's error
// rolls the whole unit back; a nil return commits it.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Read runs fn in a read-only unit. Mutations through tx are rejected or
	// discarded.
	Read(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	// LockCapacity acquires row locks on every record in keys, creating
	// missing records first. Keys must be sorted with domain.SortKeys.
	LockCapacity(ctx context.Context, keys []domain.LedgerKey) error
	Ledger(mode domain.CapacityMode) CapacityLedger
	Holds() HoldRepository
	Bookings() BookingRepository
	Refunds() RefundRepository
	Reschedules() RescheduleRepository
	Outbox() OutboxRepository
}

// Claim is one booking's draw on a capacity record.
type Claim struct {
	BookingID  string
	Quantity   int
	SeatLabels []string
	SeatLimit  int
}

// CapacityLedger is implemented once per capacity representation. Callers
// hold the record lock (Tx.LockCapacity) before Booked or Debit.
type CapacityLedger interface {
	Mode() domain.CapacityMode
	// Booked returns the booked quantity of one record.
	Booked(ctx context.Context, key domain.LedgerKey) (int, error)
	// Occupied returns the seat labels booked on the records. Aggregate
	// ledgers return nil.
	Occupied(ctx context.Context, keys []domain.LedgerKey) (map[string]bool, error)
	// Debit draws claim from one record and writes the matching ledger entry.
	Debit(ctx context.Context, key domain.LedgerKey, claim Claim) error
	// Credit releases exactly what entry debited and removes the entry.
	Credit(ctx context.Context, entry domain.LedgerEntry) error
}

// HoldRepository stores seat holds. Expiry is evaluated at read time.
type HoldRepository interface {
	// Place writes or refreshes holds; a live hold by another holder on any
	// label is a ConflictError.
	Place(ctx context.Context, holds []domain.SeatHold, now time.Time) error
	ListLive(ctx context.Context, keys []domain.LedgerKey, now time.Time) ([]domain.SeatHold, error)
	Release(ctx context.Context, keys []domain.LedgerKey, holderID string, labels []string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// BookingRepository persists bookings, manifests and ledger entries.
type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id string) (*domain.Booking, error)
	// GetForUpdate locks the booking row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*domain.Booking, error)
	GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Booking, int, error)
	Update(ctx context.Context, b *domain.Booking) error
	LedgerEntries(ctx context.Context, bookingID string) ([]domain.LedgerEntry, error)
}

// RefundRepository persists refund records.
type RefundRepository interface {
	Create(ctx context.Context, r *domain.RefundRecord) error
	Get(ctx context.Context, id string) (*domain.RefundRecord, error)
	GetForUpdate(ctx context.Context, id string) (*domain.RefundRecord, error)
	ListByStatus(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.RefundRecord, error)
	ListByBooking(ctx context.Context, bookingID string) ([]domain.RefundRecord, error)
	Update(ctx context.Context, r *domain.RefundRecord) error
}

// RescheduleRepository persists reschedule quotes.
type RescheduleRepository interface {
	// Create stores req and supersedes any older pending request of the
	// same booking.
	Create(ctx context.Context, req *domain.RescheduleRequest) error
	LatestPending(ctx context.Context, bookingID string) (*domain.RescheduleRequest, error)
	Update(ctx context.Context, req *domain.RescheduleRequest) error
}

// OutboxRepository stores events for asynchronous publication.
type OutboxRepository interface {
	Append(ctx context.Context, events ...domain.OutboxEvent) error
	// ClaimPending locks up to limit unpublished events, skipping rows
	// claimed by concurrent relays.
	ClaimPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}
