package memory

import (
	"context"
	"fmt"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
)

type aggregateLedger struct{ tx *memTx }

func (l aggregateLedger) Mode() domain.CapacityMode { return domain.CapacityAggregate }

func (l aggregateLedger) Booked(ctx context.Context, key domain.LedgerKey) (int, error) {
	return l.tx.st.capacity[key.String()], nil
}

func (l aggregateLedger) Occupied(ctx context.Context, keys []domain.LedgerKey) (map[string]bool, error) {
	return nil, nil
}

func (l aggregateLedger) Debit(ctx context.Context, key domain.LedgerKey, claim ports.Claim) error {
	if err := l.tx.beforeDebit(key); err != nil {
		return err
	}
	st := l.tx.st
	if !st.anchors[key.String()] {
		return fmt.Errorf("debit %s: record not locked", key)
	}
	if err := requireBooking(st, claim.BookingID); err != nil {
		return err
	}
	st.capacity[key.String()] += claim.Quantity
	st.entries[claim.BookingID] = append(st.entries[claim.BookingID], domain.LedgerEntry{
		BookingID: claim.BookingID,
		SegmentID: key.SegmentID,
		Date:      key.Date,
		Mode:      domain.CapacityAggregate,
		Quantity:  claim.Quantity,
	})
	return nil
}

func (l aggregateLedger) Credit(ctx context.Context, entry domain.LedgerEntry) error {
	st := l.tx.st
	k := entry.Key().String()
	st.capacity[k] = max(st.capacity[k]-entry.Quantity, 0)
	removeEntry(st, entry)
	return nil
}

type perSeatLedger struct{ tx *memTx }

func (l perSeatLedger) Mode() domain.CapacityMode { return domain.CapacityPerSeat }

func (l perSeatLedger) Booked(ctx context.Context, key domain.LedgerKey) (int, error) {
	return len(l.tx.st.seats[key.String()]), nil
}

func (l perSeatLedger) Occupied(ctx context.Context, keys []domain.LedgerKey) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, k := range keys {
		for label := range l.tx.st.seats[k.String()] {
			out[label] = true
		}
	}
	return out, nil
}

func (l perSeatLedger) Debit(ctx context.Context, key domain.LedgerKey, claim ports.Claim) error {
	if err := l.tx.beforeDebit(key); err != nil {
		return err
	}
	st := l.tx.st
	k := key.String()
	if !st.anchors[k] {
		return fmt.Errorf("debit %s: record not locked", key)
	}
	if err := requireBooking(st, claim.BookingID); err != nil {
		return err
	}
	taken := st.seats[k]
	if taken == nil {
		taken = make(map[string]string)
		st.seats[k] = taken
	}
	for _, label := range claim.SeatLabels {
		if _, ok := taken[label]; ok {
			return domain.ConflictError{Resource: "seat", Msg: fmt.Sprintf("%s is already booked on %s", label, key)}
		}
	}
	for _, label := range claim.SeatLabels {
		taken[label] = claim.BookingID
	}
	st.entries[claim.BookingID] = append(st.entries[claim.BookingID], domain.LedgerEntry{
		BookingID:  claim.BookingID,
		SegmentID:  key.SegmentID,
		Date:       key.Date,
		Mode:       domain.CapacityPerSeat,
		Quantity:   len(claim.SeatLabels),
		SeatLabels: append([]string(nil), claim.SeatLabels...),
	})
	return nil
}

func (l perSeatLedger) Credit(ctx context.Context, entry domain.LedgerEntry) error {
	st := l.tx.st
	taken := st.seats[entry.Key().String()]
	for _, label := range entry.SeatLabels {
		if taken[label] == entry.BookingID {
			delete(taken, label)
		}
	}
	removeEntry(st, entry)
	return nil
}

// requireBooking mirrors the booking_id foreign key on ledger and seat rows:
// a debit may only point at a booking already written in this transaction.
func requireBooking(st *state, bookingID string) error {
	if _, ok := st.bookings[bookingID]; !ok {
		return domain.NotFoundError{Resource: "booking", Err: fmt.Errorf("ledger entry references unknown booking %s", bookingID)}
	}
	return nil
}

func removeEntry(st *state, entry domain.LedgerEntry) {
	es := st.entries[entry.BookingID]
	kept := es[:0]
	for _, e := range es {
		if e.Key().String() != entry.Key().String() {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(st.entries, entry.BookingID)
		return
	}
	st.entries[entry.BookingID] = kept
}
