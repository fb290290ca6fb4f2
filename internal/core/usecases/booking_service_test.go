package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

func TestBookingCommit_DebitsWholeOverlapSet(t *testing.T) {
	f := newFixture(t)

	res := f.book(t, customer, draftN("s-bc", 2))

	if res.Booking.Status != domain.BookingConfirmed || res.Booking.TotalFare != 6000 {
		t.Fatalf("unexpected booking: %+v", res.Booking)
	}
	if len(res.Booking.PNR) != 6 {
		t.Errorf("expected 6-character PNR, got %q", res.Booking.PNR)
	}
	if len(res.AffectedSegments) != 4 {
		t.Fatalf("expected 4 affected segments, got %d", len(res.AffectedSegments))
	}
	for _, a := range res.AffectedSegments {
		if a.SeatsLeft != 2 {
			t.Errorf("%s: expected 2 seats left, got %d", a.SegmentID, a.SeatsLeft)
		}
	}
	for _, id := range []string{"s-ac", "s-ad", "s-bc", "s-bd"} {
		if f.booked(id) != 2 {
			t.Errorf("%s: expected 2 booked, got %d", id, f.booked(id))
		}
	}
	for _, id := range []string{"s-ab", "s-cd"} {
		if f.booked(id) != 0 {
			t.Errorf("%s must not be debited, got %d", id, f.booked(id))
		}
	}

	// Disjoint legs still see the shared seats through s-ad.
	if got := f.available(t, "s-ab"); got != 2 {
		t.Errorf("s-ab: expected 2 available, got %d", got)
	}
	if got := f.available(t, "s-cd"); got != 2 {
		t.Errorf("s-cd: expected 2 available, got %d", got)
	}

	events := f.store.Events()
	if len(events) != 5 {
		t.Fatalf("expected 4 capacity events and 1 booking event, got %d", len(events))
	}
	if events[4].EventType != "booking.confirmed" || events[0].Subject != "reservations.capacity.s-ac" {
		t.Errorf("unexpected events: %s %s", events[4].EventType, events[0].Subject)
	}
}

func TestBookingCommit_CapacityErrorFromBindingSegment(t *testing.T) {
	f := newFixture(t)
	f.book(t, customer, draftN("s-ad", 3))

	_, err := f.bookings.Commit(context.Background(), customer, draftN("s-bc", 2))
	var ce domain.CapacityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CapacityError, got %v", err)
	}
	if ce.SegmentID != "s-ad" || ce.Remaining != 1 || ce.Requested != 2 {
		t.Errorf("unexpected capacity error: %+v", ce)
	}
	if f.booked("s-bc") != 0 || f.booked("s-ad") != 3 {
		t.Errorf("rejected commit must not change the ledger")
	}

	// One seat still fits.
	f.book(t, customer, draftN("s-bc", 1))
	if got := f.available(t, "s-ab"); got != 0 {
		t.Errorf("expected s-ab sold out, got %d", got)
	}
}

func TestBookingCommit_FailureMidwayLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)
	f.store.FailDebit = func(n int, key domain.LedgerKey) error {
		if n == 3 {
			return domain.TransactionError{Op: "debit", Err: errors.New("connection reset")}
		}
		return nil
	}

	_, err := f.bookings.Commit(context.Background(), customer, draftN("s-bc", 1))
	if !domain.IsTransaction(err) {
		t.Fatalf("expected TransactionError, got %v", err)
	}
	for _, id := range []string{"s-ac", "s-ad", "s-bc", "s-bd"} {
		if f.booked(id) != 0 {
			t.Errorf("%s: expected nothing booked after rollback, got %d", id, f.booked(id))
		}
	}
	if len(f.store.Events()) != 0 {
		t.Error("rolled back commit must not leave outbox events")
	}
	list, total, _ := f.bookings.List(context.Background(), customer, 0, 10)
	if total != 0 || len(list) != 0 {
		t.Errorf("rolled back commit must not leave a booking")
	}

	f.store.FailDebit = nil
	f.book(t, customer, draftN("s-bc", 1))
}

func TestBookingCommit_ConcurrentCommitsNeverOversell(t *testing.T) {
	f := newFixture(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			segment := "s-bc"
			if i%2 == 0 {
				segment = "s-ad"
			}
			_, err := f.bookings.Commit(context.Background(), customer, draftN(segment, 1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case domain.IsCapacity(err):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 4 || rejected != 6 {
		t.Fatalf("expected 4 successes and 6 rejections, got %d/%d", succeeded, rejected)
	}
	if f.booked("s-ad") != 4 {
		t.Errorf("s-ad carries every passenger, expected 4 booked, got %d", f.booked("s-ad"))
	}
}

func TestBookingCommit_PaymentMustVerify(t *testing.T) {
	f := newFixture(t)

	f.verifier.reject = true
	_, err := f.bookings.Commit(context.Background(), customer, draftN("s-ab", 1))
	if !domain.IsPaymentVerification(err) {
		t.Fatalf("expected PaymentVerificationError, got %v", err)
	}

	f.verifier.reject = false
	short := draftN("s-ab", 2)
	short.Payment.OrderID = "order_short"
	short.Payment.Amount = 1_000_000 // the client's figure is not trusted
	f.gateway.capture("order_short", 3999)
	_, err = f.bookings.Commit(context.Background(), customer, short)
	if !domain.IsPaymentVerification(err) {
		t.Fatalf("expected PaymentVerificationError for underpayment, got %v", err)
	}

	unknown := draftN("s-ab", 1)
	unknown.Payment.OrderID = "order_missing"
	if _, err := f.bookings.Commit(context.Background(), customer, unknown); !domain.IsPaymentVerification(err) {
		t.Fatalf("expected PaymentVerificationError for an unknown order, got %v", err)
	}
	if f.booked("s-ab") != 0 || len(f.store.Events()) != 0 {
		t.Error("failed verification must not touch state")
	}
}

func TestBookingCommit_StoresCapturedAmount(t *testing.T) {
	f := newFixture(t)
	d := draftN("s-ab", 1)
	d.Payment.OrderID = "order_exact"
	d.Payment.Amount = 1
	f.gateway.capture("order_exact", 2000)

	res := f.book(t, customer, d)
	if res.Booking.Payment.Amount != 2000 {
		t.Fatalf("expected the captured 2000 to be stored, got %d", res.Booking.Payment.Amount)
	}
}

func TestBookingCommit_Validation(t *testing.T) {
	f := newFixture(t)

	noPassengers := draftN("s-ab", 0)
	aggregateSeat := draft("s-ab", "S1")
	missingSeat := draftN("h-12", 2, "S1")
	badSeat := draft("h-12", "S4")
	past := draftN("s-ab", 1)
	past.Date = travelDate.AddDate(0, -1, 0)

	for name, d := range map[string]usecases.BookingDraft{
		"no passengers":             noPassengers,
		"seat on aggregate vehicle": aggregateSeat,
		"passenger without seat":    missingSeat,
		"seat beyond limit":         badSeat,
		"past date":                 past,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.bookings.Commit(context.Background(), customer, d)
			if !domain.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	if _, err := f.bookings.Commit(context.Background(), domain.Caller{}, draftN("s-ab", 1)); !domain.IsForbidden(err) {
		t.Fatalf("expected ForbiddenError for anonymous caller, got %v", err)
	}
}

func TestBookingCommit_PerSeatOverlapBlocksSameLabel(t *testing.T) {
	f := newFixture(t)
	f.book(t, customer, draft("h-13", "S1"))

	_, err := f.bookings.Commit(context.Background(), other, draft("h-12", "S1"))
	if !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	seats, err := f.inventory.SeatMap(context.Background(), "h-23", travelDate, other.UserID)
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	if seats.Seats[0].Status != usecases.SeatBooked || seats.Available != 2 {
		t.Errorf("expected S1 booked and 2 seats free on h-23, got %+v", seats)
	}

	f.book(t, other, draft("h-12", "S2"))
	if got := f.available(t, "h-13"); got != 1 {
		t.Errorf("expected 1 seat left on h-13, got %d", got)
	}
}

func TestBookingReads(t *testing.T) {
	f := newFixture(t)
	res := f.book(t, customer, draftN("s-ab", 1))

	if _, err := f.bookings.Get(context.Background(), other, res.Booking.ID); !domain.IsForbidden(err) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if _, err := f.bookings.Get(context.Background(), admin, res.Booking.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	b, err := f.bookings.GetByPNR(context.Background(), res.Booking.PNR)
	if err != nil || b.ID != res.Booking.ID {
		t.Fatalf("lookup by PNR: %v", err)
	}
	if _, err := f.bookings.GetByPNR(context.Background(), "ABC"); !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError for short PNR, got %v", err)
	}
	if _, err := f.bookings.Get(context.Background(), customer, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
