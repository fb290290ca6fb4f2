package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
)

const outboxMaxRetries = 5

// reserveInTx runs the binding availability check and debits every record of
// the overlap set. Locks are taken here in ascending segment order; callers
// that touch other records in the same transaction lock the union first.
func reserveInTx(ctx context.Context, tx ports.Tx, res *Resolution, date time.Time, claim ports.Claim, holderID string, now time.Time) ([]domain.AffectedSegment, error) {
	keys := res.Keys(date)
	if err := tx.LockCapacity(ctx, keys); err != nil {
		return nil, err
	}
	ledger := tx.Ledger(res.Mode())

	if ledger.Mode() == domain.CapacityPerSeat {
		if err := checkSeatsFree(ctx, tx, ledger, keys, claim.SeatLabels, holderID, now); err != nil {
			return nil, err
		}
	}

	booked := make(map[string]int, len(keys))
	order := make([]string, len(keys))
	for i, k := range keys {
		n, err := ledger.Booked(ctx, k)
		if err != nil {
			return nil, err
		}
		booked[k.SegmentID] = n
		order[i] = k.SegmentID
	}
	binding, heaviest := domain.Binding(booked, order)
	if remaining := domain.Remaining(claim.SeatLimit, heaviest); remaining < claim.Quantity {
		return nil, domain.CapacityError{
			SegmentID: binding,
			Date:      date,
			Requested: claim.Quantity,
			Remaining: remaining,
		}
	}

	affected := make([]domain.AffectedSegment, 0, len(keys))
	for _, k := range keys {
		if err := ledger.Debit(ctx, k, claim); err != nil {
			return nil, err
		}
		affected = append(affected, domain.AffectedSegment{
			SegmentID: k.SegmentID,
			Date:      k.Date,
			SeatsLeft: domain.Remaining(claim.SeatLimit, booked[k.SegmentID]+claim.Quantity),
		})
	}

	if ledger.Mode() == domain.CapacityPerSeat && holderID != "" {
		if err := tx.Holds().Release(ctx, keys, holderID, claim.SeatLabels); err != nil {
			return nil, err
		}
	}
	return affected, nil
}

// checkSeatsFree rejects labels booked on any record of the set, or held
// there by someone other than holderID.
func checkSeatsFree(ctx context.Context, tx ports.Tx, ledger ports.CapacityLedger, keys []domain.LedgerKey, labels []string, holderID string, now time.Time) error {
	occupied, err := ledger.Occupied(ctx, keys)
	if err != nil {
		return err
	}
	for _, l := range labels {
		if occupied[l] {
			return domain.ConflictError{Resource: "seat", Msg: fmt.Sprintf("%s is already booked", l)}
		}
	}

	holds, err := tx.Holds().ListLive(ctx, keys, now)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	for _, h := range holds {
		if want[h.SeatLabel] && h.HolderID != holderID {
			return domain.ConflictError{Resource: "seat", Msg: fmt.Sprintf("%s is held by another passenger", h.SeatLabel)}
		}
	}
	return nil
}

// creditEntries releases a booking's debits. The caller has already locked
// the records.
func creditEntries(ctx context.Context, tx ports.Tx, entries []domain.LedgerEntry) error {
	for _, e := range entries {
		if err := tx.Ledger(e.Mode).Credit(ctx, e); err != nil {
			return fmt.Errorf("credit %s: %w", e.Key(), err)
		}
	}
	return nil
}

func entryKeys(entries []domain.LedgerEntry) []domain.LedgerKey {
	keys := make([]domain.LedgerKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key())
	}
	return domain.MergeKeys(keys)
}

// seatsLeft reports remaining seats per record after a mutation.
func seatsLeft(ctx context.Context, ledger ports.CapacityLedger, keys []domain.LedgerKey, seatLimit int) ([]domain.AffectedSegment, error) {
	out := make([]domain.AffectedSegment, 0, len(keys))
	for _, k := range keys {
		n, err := ledger.Booked(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.AffectedSegment{SegmentID: k.SegmentID, Date: k.Date, SeatsLeft: domain.Remaining(seatLimit, n)})
	}
	return out, nil
}

func newEvent(aggregateType, aggregateID, eventType, subject string, payload any, now time.Time) (domain.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return domain.OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Subject:       subject,
		Payload:       data,
		Status:        domain.OutboxPending,
		MaxRetries:    outboxMaxRetries,
		CreatedAt:     now,
	}, nil
}

// CapacitySubject is the broker subject for one segment's capacity changes.
func CapacitySubject(segmentID string) string {
	return "reservations.capacity." + segmentID
}

// BookingSubject is the broker subject for booking lifecycle events.
func BookingSubject(eventType string) string {
	return "reservations.booking." + eventType
}

func capacityEvents(affected []domain.AffectedSegment, reason, bookingID string, now time.Time) ([]domain.OutboxEvent, error) {
	events := make([]domain.OutboxEvent, 0, len(affected))
	for _, a := range affected {
		ev, err := newEvent("capacity", a.SegmentID, "capacity.changed", CapacitySubject(a.SegmentID), domain.CapacityChanged{
			SegmentID: a.SegmentID,
			Date:      domain.FormatDate(a.Date),
			SeatsLeft: a.SeatsLeft,
			Reason:    reason,
			BookingID: bookingID,
		}, now)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func bookingEvent(eventType string, b *domain.Booking, now time.Time) (domain.OutboxEvent, error) {
	return newEvent("booking", b.ID, "booking."+eventType, BookingSubject(eventType), map[string]any{
		"booking_id":  b.ID,
		"pnr":         b.PNR,
		"status":      b.Status,
		"segment_id":  b.SegmentID,
		"travel_date": domain.FormatDate(b.TravelDate),
		"total_fare":  b.TotalFare,
		"passengers":  len(b.Passengers),
	}, now)
}
