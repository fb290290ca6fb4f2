// Package memory is an in-process reservation store. Transactions are
// serialized on one mutex and applied copy-on-commit, so a failed unit of
// work leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
)

// Store implements ports.TxManager and ports.TimetableRepository.
type Store struct {
	mu    sync.Mutex
	state *state

	ttMu     sync.RWMutex
	vehicles map[string]domain.Vehicle
	segments map[string]domain.ScheduleSegment

	// FailDebit, when set, is called before the n-th debit (1-based) of a
	// transaction; a non-nil return aborts the debit.
	FailDebit func(n int, key domain.LedgerKey) error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		state:    newState(),
		vehicles: make(map[string]domain.Vehicle),
		segments: make(map[string]domain.ScheduleSegment),
	}
}

// AddVehicle registers or replaces a vehicle.
func (s *Store) AddVehicle(v domain.Vehicle) {
	s.ttMu.Lock()
	defer s.ttMu.Unlock()
	v.IntermediateStops = append([]string(nil), v.IntermediateStops...)
	s.vehicles[v.ID] = v
}

// AddSegment registers or replaces a schedule segment.
func (s *Store) AddSegment(seg domain.ScheduleSegment) {
	s.ttMu.Lock()
	defer s.ttMu.Unlock()
	seg.OperatingDays = append([]time.Weekday(nil), seg.OperatingDays...)
	s.segments[seg.ID] = seg
}

func (s *Store) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	s.ttMu.RLock()
	defer s.ttMu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "vehicle"}
	}
	return &v, nil
}

func (s *Store) GetSegment(ctx context.Context, id string) (*domain.ScheduleSegment, error) {
	s.ttMu.RLock()
	defer s.ttMu.RUnlock()
	seg, ok := s.segments[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "segment"}
	}
	return &seg, nil
}

func (s *Store) ListSegmentsByVehicle(ctx context.Context, vehicleID string) ([]domain.ScheduleSegment, error) {
	s.ttMu.RLock()
	defer s.ttMu.RUnlock()
	var out []domain.ScheduleSegment
	for _, seg := range s.segments {
		if seg.VehicleID == vehicleID {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// WithinTx runs fn against a private copy of the state and publishes the
// copy only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domain.TransactionError{Op: "begin", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &memTx{store: s, st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Read runs fn against a copy that is always discarded.
func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domain.TransactionError{Op: "begin", Err: err}
	}
	s.mu.Lock()
	work := s.state.clone()
	s.mu.Unlock()
	return fn(ctx, &memTx{store: s, st: work, readOnly: true})
}

// Booked reports the committed booked quantity of one record.
func (s *Store) Booked(segmentID, date string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := domain.ParseDate(date)
	if err != nil {
		return 0
	}
	key := domain.LedgerKey{SegmentID: segmentID, Date: d}.String()
	return s.state.capacity[key] + len(s.state.seats[key])
}

// Events returns a copy of the committed outbox.
func (s *Store) Events() []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxEvent(nil), s.state.outbox...)
}

// Refunds returns every committed refund record, oldest first.
func (s *Store) Refunds() []domain.RefundRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.sortedRefunds()
}

type memTx struct {
	store    *Store
	st       *state
	readOnly bool
	debits   int
}

func (t *memTx) LockCapacity(ctx context.Context, keys []domain.LedgerKey) error {
	for i := 1; i < len(keys); i++ {
		a, b := keys[i-1], keys[i]
		if a.SegmentID > b.SegmentID || (a.SegmentID == b.SegmentID && a.Date.After(b.Date)) {
			return fmt.Errorf("lock capacity: keys out of order at %s", b)
		}
	}
	for _, k := range keys {
		t.st.anchors[k.String()] = true
	}
	return nil
}

func (t *memTx) Ledger(mode domain.CapacityMode) ports.CapacityLedger {
	if mode == domain.CapacityPerSeat {
		return perSeatLedger{tx: t}
	}
	return aggregateLedger{tx: t}
}

func (t *memTx) Holds() ports.HoldRepository             { return holdRepo{tx: t} }
func (t *memTx) Bookings() ports.BookingRepository       { return bookingRepo{tx: t} }
func (t *memTx) Refunds() ports.RefundRepository         { return refundRepo{tx: t} }
func (t *memTx) Reschedules() ports.RescheduleRepository { return rescheduleRepo{tx: t} }
func (t *memTx) Outbox() ports.OutboxRepository          { return outboxRepo{tx: t} }

func (t *memTx) beforeDebit(key domain.LedgerKey) error {
	t.debits++
	if t.store.FailDebit != nil {
		return t.store.FailDebit(t.debits, key)
	}
	return nil
}
