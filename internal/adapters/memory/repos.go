package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

type holdRepo struct{ tx *memTx }

func (r holdRepo) Place(ctx context.Context, holds []domain.SeatHold, now time.Time) error {
	st := r.tx.st
	for _, h := range holds {
		if cur, ok := st.holds[holdKey(domain.LedgerKey{SegmentID: h.SegmentID, Date: h.Date}, h.SeatLabel)]; ok && cur.Live(now) && cur.HolderID != h.HolderID {
			return domain.ConflictError{Resource: "seat", Msg: h.SeatLabel + " is held by another passenger"}
		}
	}
	for _, h := range holds {
		st.holds[holdKey(domain.LedgerKey{SegmentID: h.SegmentID, Date: h.Date}, h.SeatLabel)] = h
	}
	return nil
}

func (r holdRepo) ListLive(ctx context.Context, keys []domain.LedgerKey, now time.Time) ([]domain.SeatHold, error) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k.String()] = true
	}
	var out []domain.SeatHold
	for _, h := range r.tx.st.holds {
		if want[domain.LedgerKey{SegmentID: h.SegmentID, Date: h.Date}.String()] && h.Live(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SegmentID != out[j].SegmentID {
			return out[i].SegmentID < out[j].SegmentID
		}
		return out[i].SeatLabel < out[j].SeatLabel
	})
	return out, nil
}

// Release drops holderID's holds on labels; no labels means all of them.
func (r holdRepo) Release(ctx context.Context, keys []domain.LedgerKey, holderID string, labels []string) error {
	only := make(map[string]bool, len(labels))
	for _, l := range labels {
		only[l] = true
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k.String()] = true
	}
	for id, h := range r.tx.st.holds {
		if h.HolderID != holderID || !want[domain.LedgerKey{SegmentID: h.SegmentID, Date: h.Date}.String()] {
			continue
		}
		if len(only) == 0 || only[h.SeatLabel] {
			delete(r.tx.st.holds, id)
		}
	}
	return nil
}

func (r holdRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, h := range r.tx.st.holds {
		if !h.Live(now) {
			delete(r.tx.st.holds, id)
			n++
		}
	}
	return n, nil
}

type bookingRepo struct{ tx *memTx }

func (r bookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	st := r.tx.st
	if _, ok := st.bookings[b.ID]; ok {
		return domain.ConflictError{Resource: "booking", Msg: "duplicate id"}
	}
	if _, ok := st.pnrs[b.PNR]; ok {
		return domain.ConflictError{Resource: "booking", Msg: "duplicate pnr"}
	}
	if _, ok := st.numbers[b.BookingNumber]; ok {
		return domain.ConflictError{Resource: "booking", Msg: "duplicate booking number"}
	}
	st.bookings[b.ID] = copyBooking(*b)
	st.pnrs[b.PNR] = b.ID
	st.numbers[b.BookingNumber] = b.ID
	return nil
}

func (r bookingRepo) Get(ctx context.Context, id string) (*domain.Booking, error) {
	b, ok := r.tx.st.bookings[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "booking"}
	}
	b = copyBooking(b)
	return &b, nil
}

func (r bookingRepo) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	return r.Get(ctx, id)
}

func (r bookingRepo) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	id, ok := r.tx.st.pnrs[strings.ToUpper(pnr)]
	if !ok {
		return nil, domain.NotFoundError{Resource: "booking"}
	}
	return r.Get(ctx, id)
}

func (r bookingRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Booking, int, error) {
	var all []domain.Booking
	for _, b := range r.tx.st.bookings {
		if b.UserID == userID {
			all = append(all, copyBooking(b))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if offset >= total {
		return []domain.Booking{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r bookingRepo) Update(ctx context.Context, b *domain.Booking) error {
	if _, ok := r.tx.st.bookings[b.ID]; !ok {
		return domain.NotFoundError{Resource: "booking"}
	}
	r.tx.st.bookings[b.ID] = copyBooking(*b)
	return nil
}

func (r bookingRepo) LedgerEntries(ctx context.Context, bookingID string) ([]domain.LedgerEntry, error) {
	return copyEntries(r.tx.st.entries[bookingID]), nil
}

type refundRepo struct{ tx *memTx }

func (r refundRepo) Create(ctx context.Context, rec *domain.RefundRecord) error {
	if _, ok := r.tx.st.refunds[rec.ID]; ok {
		return domain.ConflictError{Resource: "refund", Msg: "duplicate id"}
	}
	r.tx.st.refunds[rec.ID] = *rec
	return nil
}

func (r refundRepo) Get(ctx context.Context, id string) (*domain.RefundRecord, error) {
	rec, ok := r.tx.st.refunds[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "refund"}
	}
	return &rec, nil
}

func (r refundRepo) GetForUpdate(ctx context.Context, id string) (*domain.RefundRecord, error) {
	return r.Get(ctx, id)
}

func (r refundRepo) ListByStatus(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.RefundRecord, error) {
	var out []domain.RefundRecord
	for _, rec := range r.tx.st.sortedRefunds() {
		if rec.Status == status {
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r refundRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.RefundRecord, error) {
	var out []domain.RefundRecord
	for _, rec := range r.tx.st.sortedRefunds() {
		if rec.BookingID == bookingID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r refundRepo) Update(ctx context.Context, rec *domain.RefundRecord) error {
	if _, ok := r.tx.st.refunds[rec.ID]; !ok {
		return domain.NotFoundError{Resource: "refund"}
	}
	r.tx.st.refunds[rec.ID] = *rec
	return nil
}

type rescheduleRepo struct{ tx *memTx }

func (r rescheduleRepo) Create(ctx context.Context, req *domain.RescheduleRequest) error {
	for id, existing := range r.tx.st.reschedules {
		if existing.BookingID == req.BookingID && existing.Status == domain.ReschedulePending {
			existing.Status = domain.RescheduleSuperseded
			r.tx.st.reschedules[id] = existing
		}
	}
	r.tx.st.reschedules[req.ID] = *req
	return nil
}

func (r rescheduleRepo) LatestPending(ctx context.Context, bookingID string) (*domain.RescheduleRequest, error) {
	var latest *domain.RescheduleRequest
	for _, req := range r.tx.st.reschedules {
		if req.BookingID != bookingID || req.Status != domain.ReschedulePending {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = &req
		}
	}
	if latest == nil {
		return nil, domain.NotFoundError{Resource: "reschedule request"}
	}
	return latest, nil
}

func (r rescheduleRepo) Update(ctx context.Context, req *domain.RescheduleRequest) error {
	if _, ok := r.tx.st.reschedules[req.ID]; !ok {
		return domain.NotFoundError{Resource: "reschedule request"}
	}
	r.tx.st.reschedules[req.ID] = *req
	return nil
}

type outboxRepo struct{ tx *memTx }

func (r outboxRepo) Append(ctx context.Context, events ...domain.OutboxEvent) error {
	r.tx.st.outbox = append(r.tx.st.outbox, events...)
	return nil
}

func (r outboxRepo) ClaimPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	var out []domain.OutboxEvent
	for _, ev := range r.tx.st.outbox {
		if ev.Status == domain.OutboxPending {
			out = append(out, ev)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(ev *domain.OutboxEvent) {
		ev.Status = domain.OutboxPublished
		ev.PublishedAt = &at
	})
}

func (r outboxRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.update(id, func(ev *domain.OutboxEvent) {
		ev.RetryCount++
		ev.LastError = reason
		if ev.RetryCount >= ev.MaxRetries {
			ev.Status = domain.OutboxFailed
		}
	})
}

func (r outboxRepo) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	kept := r.tx.st.outbox[:0]
	for _, ev := range r.tx.st.outbox {
		if ev.Status == domain.OutboxPublished && ev.PublishedAt != nil && ev.PublishedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	r.tx.st.outbox = kept
	return n, nil
}

func (r outboxRepo) update(id string, fn func(ev *domain.OutboxEvent)) error {
	for i := range r.tx.st.outbox {
		if r.tx.st.outbox[i].ID == id {
			fn(&r.tx.st.outbox[i])
			return nil
		}
	}
	return domain.NotFoundError{Resource: "outbox event"}
}
