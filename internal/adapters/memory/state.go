package memory

import (
	"sort"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

type state struct {
	anchors  map[string]bool
	capacity map[string]int               // aggregate booked, by record key
	seats    map[string]map[string]string // record key -> label -> booking ID
	entries  map[string][]domain.LedgerEntry
	holds    map[string]domain.SeatHold // record key + "/" + label

	bookings    map[string]domain.Booking
	pnrs        map[string]string
	numbers     map[string]string
	refunds     map[string]domain.RefundRecord
	reschedules map[string]domain.RescheduleRequest
	outbox      []domain.OutboxEvent
}

func newState() *state {
	return &state{
		anchors:     make(map[string]bool),
		capacity:    make(map[string]int),
		seats:       make(map[string]map[string]string),
		entries:     make(map[string][]domain.LedgerEntry),
		holds:       make(map[string]domain.SeatHold),
		bookings:    make(map[string]domain.Booking),
		pnrs:        make(map[string]string),
		numbers:     make(map[string]string),
		refunds:     make(map[string]domain.RefundRecord),
		reschedules: make(map[string]domain.RescheduleRequest),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.anchors {
		c.anchors[k] = v
	}
	for k, v := range s.capacity {
		c.capacity[k] = v
	}
	for k, labels := range s.seats {
		m := make(map[string]string, len(labels))
		for l, id := range labels {
			m[l] = id
		}
		c.seats[k] = m
	}
	for k, es := range s.entries {
		c.entries[k] = copyEntries(es)
	}
	for k, v := range s.holds {
		c.holds[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = copyBooking(v)
	}
	for k, v := range s.pnrs {
		c.pnrs[k] = v
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.refunds {
		c.refunds[k] = v
	}
	for k, v := range s.reschedules {
		v.NewSeatLabels = append([]string(nil), v.NewSeatLabels...)
		c.reschedules[k] = v
	}
	c.outbox = make([]domain.OutboxEvent, len(s.outbox))
	copy(c.outbox, s.outbox)
	return c
}

func (s *state) sortedRefunds() []domain.RefundRecord {
	out := make([]domain.RefundRecord, 0, len(s.refunds))
	for _, r := range s.refunds {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func copyBooking(b domain.Booking) domain.Booking {
	b.Passengers = append([]domain.Passenger(nil), b.Passengers...)
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		b.CancelledAt = &t
	}
	return b
}

func copyEntries(es []domain.LedgerEntry) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, len(es))
	for i, e := range es {
		e.SeatLabels = append([]string(nil), e.SeatLabels...)
		out[i] = e
	}
	return out
}

func holdKey(k domain.LedgerKey, label string) string {
	return k.String() + "/" + label
}
