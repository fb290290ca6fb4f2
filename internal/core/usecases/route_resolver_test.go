package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/samirrijal/skyhop/internal/adapters/memory"
	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

// countingTimetable counts vehicle loads to observe cache behaviour.
type countingTimetable struct {
	*memory.Store
	loads int
}

func (c *countingTimetable) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	c.loads++
	return c.Store.GetVehicle(ctx, id)
}

func TestRouteResolver_CachesPerVehicle(t *testing.T) {
	f := newFixture(t)
	tt := &countingTimetable{Store: f.store}
	cache := newFakeCache()
	r := usecases.NewRouteResolver(tt, cache, time.Minute)
	ctx := context.Background()

	for _, id := range []string{"s-bc", "s-ab", "s-cd"} {
		if _, err := r.Resolve(ctx, id); err != nil {
			t.Fatalf("resolve %s: %v", id, err)
		}
	}
	if tt.loads != 1 {
		t.Fatalf("expected one load for three segments of one vehicle, got %d", tt.loads)
	}

	if err := r.HandleFleetUpdate(ctx, &domain.FleetUpdate{VehicleID: "v-air", Kind: "timetable"}); err != nil {
		t.Fatalf("fleet update: %v", err)
	}
	res, err := r.Resolve(ctx, "s-bc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tt.loads != 2 {
		t.Fatalf("expected reload after invalidation, got %d loads", tt.loads)
	}
	if len(res.Overlap) != 4 {
		t.Fatalf("expected 4 overlapping segments, got %d", len(res.Overlap))
	}
}

// Two API instances share one cache; a fleet update handled by either one
// invalidates the entry both read.
func TestRouteResolver_SharedCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	tt := &countingTimetable{Store: f.store}
	cache := newFakeCache()
	first := usecases.NewRouteResolver(tt, cache, time.Minute)
	second := usecases.NewRouteResolver(tt, cache, time.Minute)
	ctx := context.Background()

	if _, err := first.Resolve(ctx, "s-ab"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := second.Resolve(ctx, "s-bc"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tt.loads != 1 {
		t.Fatalf("second instance should hit the shared entry, got %d loads", tt.loads)
	}

	if err := first.HandleFleetUpdate(ctx, &domain.FleetUpdate{VehicleID: "v-air", Kind: "vehicle"}); err != nil {
		t.Fatalf("fleet update: %v", err)
	}
	if _, err := second.Resolve(ctx, "s-bc"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tt.loads != 2 {
		t.Fatalf("second instance should reload after the update, got %d loads", tt.loads)
	}
}

func TestRouteResolver_InvalidStopsFallBackToSegment(t *testing.T) {
	store := memory.NewStore()
	store.AddVehicle(domain.Vehicle{ID: "v", Kind: domain.VehicleAircraft, StartPoint: "A", EndPoint: "B", IntermediateStops: []string{"A"}, SeatLimit: 2})
	store.AddSegment(domain.ScheduleSegment{ID: "s-1", VehicleID: "v", DeparturePoint: "A", ArrivalPoint: "B", Active: true})
	store.AddSegment(domain.ScheduleSegment{ID: "s-2", VehicleID: "v", DeparturePoint: "A", ArrivalPoint: "B", Active: true})

	res, err := usecases.NewRouteResolver(store, nil, 0).Resolve(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Route != nil || len(res.Overlap) != 1 || res.Overlap[0].ID != "s-1" {
		t.Fatalf("expected segment alone, got %+v", res.Overlap)
	}
}

func TestRouteResolver_UnknownSegment(t *testing.T) {
	f := newFixture(t)
	if _, err := f.resolver.Resolve(context.Background(), "nope"); !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := f.resolver.Resolve(context.Background(), ""); !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestInventory_Availability(t *testing.T) {
	f := newFixture(t)
	f.book(t, customer, draftN("s-ab", 1))
	f.book(t, customer, draftN("s-ac", 2))

	a, err := f.inventory.Available(context.Background(), "s-ab", travelDate)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	// s-ac and s-ad each carry all three passengers; s-ab only one.
	if a.AvailableSeats != 1 || a.BindingSegmentID != "s-ac" || a.OverlapSize != 3 {
		t.Fatalf("unexpected availability: %+v", a)
	}

	if _, err := f.inventory.SeatMap(context.Background(), "s-ab", travelDate, ""); !domain.IsValidation(err) {
		t.Fatalf("seat map of an aggregate vehicle should be rejected, got %v", err)
	}
}
