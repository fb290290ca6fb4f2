package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

func holdReq(segmentID, holder string, seats ...string) usecases.HoldRequest {
	return usecases.HoldRequest{SegmentID: segmentID, Date: travelDate, SeatLabels: seats, HolderID: holder}
}

func TestHold_ObstructsOthersNotSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.holds.Hold(ctx, holdReq("h-12", customer.UserID, "S1", "S2"))
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if want := f.clock.Now().Add(10 * time.Minute); !res.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, res.ExpiresAt)
	}

	// h-13 shares the H1-H2 leg, so the hold obstructs it too.
	if _, err := f.holds.Hold(ctx, holdReq("h-13", other.UserID, "S2")); !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError for another holder, got %v", err)
	}
	if _, err := f.bookings.Commit(ctx, other, draft("h-12", "S1")); !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError committing a held seat, got %v", err)
	}

	// The holder can refresh and then book.
	if _, err := f.holds.Hold(ctx, holdReq("h-12", customer.UserID, "S1")); err != nil {
		t.Fatalf("refreshing own hold: %v", err)
	}
	f.book(t, customer, draft("h-12", "S1"))

	seats, err := f.inventory.SeatMap(ctx, "h-12", travelDate, customer.UserID)
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	states := map[string]usecases.SeatState{}
	for _, s := range seats.Seats {
		states[s.Label] = s
	}
	if states["S1"].Status != usecases.SeatBooked {
		t.Errorf("S1: expected booked, got %s", states["S1"].Status)
	}
	if s := states["S2"]; s.Status != usecases.SeatAvailable || !s.HeldByYou {
		t.Errorf("S2: expected available and held by requester, got %+v", s)
	}

	theirs, err := f.inventory.SeatMap(ctx, "h-12", travelDate, other.UserID)
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	if theirs.Seats[1].Status != usecases.SeatHeld || theirs.Seats[1].HeldUntil == nil {
		t.Errorf("S2 should show held to other users, got %+v", theirs.Seats[1])
	}
}

func TestHold_CommitReleasesHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.holds.Hold(ctx, holdReq("h-12", customer.UserID, "S1", "S2")); err != nil {
		t.Fatalf("hold: %v", err)
	}
	f.book(t, customer, draft("h-12", "S1", "S2"))

	labels, err := f.inventory.ListAvailable(ctx, "h-12", travelDate, other.UserID)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(labels) != 1 || labels[0] != "S3" {
		t.Fatalf("expected only S3 free, got %v", labels)
	}
	n, err := f.holds.Sweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected no holds left to sweep, got %d %v", n, err)
	}
}

func TestHold_ExpiredHoldDoesNotObstruct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.holds.Hold(ctx, holdReq("h-12", customer.UserID, "S1")); err != nil {
		t.Fatalf("hold: %v", err)
	}
	f.clock.Advance(11 * time.Minute)

	if _, err := f.holds.Hold(ctx, holdReq("h-12", other.UserID, "S1")); err != nil {
		t.Fatalf("expired hold should not obstruct: %v", err)
	}
	if _, err := f.holds.Hold(ctx, holdReq("h-12", customer.UserID, "S1")); !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError against the new live hold, got %v", err)
	}
}

func TestHold_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.holds.Hold(ctx, holdReq("h-13", customer.UserID, "S3")); err != nil {
		t.Fatalf("hold: %v", err)
	}
	f.clock.Advance(10 * time.Minute)

	n, err := f.holds.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired hold, got %d", n)
	}
}

func TestHold_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  usecases.HoldRequest
	}{
		{"aggregate vehicle", holdReq("s-ab", customer.UserID, "S1")},
		{"no seats", holdReq("h-12", customer.UserID)},
		{"unknown label", holdReq("h-12", customer.UserID, "S9")},
		{"duplicate label", holdReq("h-12", customer.UserID, "S1", "S1")},
		{"no holder", holdReq("h-12", "", "S1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.holds.Hold(ctx, tt.req); !domain.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestHold_Release(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.holds.Hold(ctx, holdReq("h-12", customer.UserID, "S1")); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := f.holds.Release(ctx, holdReq("h-12", customer.UserID, "S1")); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := f.holds.Hold(ctx, holdReq("h-13", other.UserID, "S1")); err != nil {
		t.Fatalf("released seat should be free: %v", err)
	}
}
