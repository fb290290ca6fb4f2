package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/skyhop/internal/adapters/memory"
	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

var (
	customer = domain.Caller{UserID: "u-1", Role: domain.RoleCustomer}
	other    = domain.Caller{UserID: "u-2", Role: domain.RoleCustomer}
	admin    = domain.Caller{UserID: "ops-1", Role: domain.RoleAdmin}

	// Tuesday; departures at 08:00 UTC.
	travelDate = time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC)
)

// --- Fake clock ---

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// --- Fake PaymentVerifier ---

type fakeVerifier struct {
	reject bool
	err    error
}

func (f *fakeVerifier) Verify(ctx context.Context, orderID, paymentID, signature string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.reject, nil
}

// --- Fake PaymentGateway ---

type fakeGateway struct {
	mu       sync.Mutex
	orders   []ports.PaymentOrder
	refunds  []string
	fail     error
	captured map[string]int64 // order ID -> amount paid
}

func (g *fakeGateway) capture(orderID string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.captured == nil {
		g.captured = make(map[string]int64)
	}
	g.captured[orderID] = amount
}

func (g *fakeGateway) FetchOrder(ctx context.Context, orderID string) (*ports.PaymentOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	paid, ok := g.captured[orderID]
	if !ok {
		return nil, fmt.Errorf("gateway 400: order %s does not exist", orderID)
	}
	return &ports.PaymentOrder{ID: orderID, Amount: paid, AmountPaid: paid, Currency: "NPR", Status: "paid"}, nil
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, receipt string) (*ports.PaymentOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := ports.PaymentOrder{ID: fmt.Sprintf("order_%d", len(g.orders)+1), Amount: amount, Currency: "NPR", Receipt: receipt}
	g.orders = append(g.orders, o)
	return &o, nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentID string, amount int64, reference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return "", g.fail
	}
	g.refunds = append(g.refunds, reference)
	return "rfnd_" + reference, nil
}

func (g *fakeGateway) MinimumChargeable() int64 { return 100 }

// --- Fake CacheService ---

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Fixture ---

type fixture struct {
	store      *memory.Store
	clock      *clock
	verifier   *fakeVerifier
	gateway    *fakeGateway
	resolver   *usecases.RouteResolver
	inventory  *usecases.InventoryService
	holds      *usecases.HoldService
	bookings   *usecases.BookingService
	cancels    *usecases.CancellationService
	reschedule *usecases.RescheduleService
}

// newFixture seeds an aircraft A-B-C-D (4 seats, aggregate) with every
// sellable leg, and a rotorcraft H1-H2-H3 (3 named seats).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()

	store.AddVehicle(domain.Vehicle{
		ID: "v-air", Code: "9N-AKA", Kind: domain.VehicleAircraft,
		StartPoint: "A", EndPoint: "D", IntermediateStops: []string{"B", "C"},
		SeatLimit: 4,
	})
	legs := []struct {
		id, from, to string
		price        int64
	}{
		{"s-ab", "A", "B", 2000},
		{"s-ac", "A", "C", 3500},
		{"s-ad", "A", "D", 5500},
		{"s-bc", "B", "C", 3000},
		{"s-bd", "B", "D", 4500},
		{"s-cd", "C", "D", 2500},
	}
	for _, l := range legs {
		store.AddSegment(domain.ScheduleSegment{
			ID: l.id, VehicleID: "v-air", DeparturePoint: l.from, ArrivalPoint: l.to,
			DepartureMinute: 8 * 60, ArrivalMinute: 9 * 60, Price: l.price, Active: true,
		})
	}

	store.AddVehicle(domain.Vehicle{
		ID: "v-heli", Code: "9N-HLI", Kind: domain.VehicleRotorcraft,
		StartPoint: "H1", EndPoint: "H3", IntermediateStops: []string{"H2"},
		SeatLimit: 3,
	})
	for _, l := range []struct{ id, from, to string }{{"h-12", "H1", "H2"}, {"h-13", "H1", "H3"}, {"h-23", "H2", "H3"}} {
		store.AddSegment(domain.ScheduleSegment{
			ID: l.id, VehicleID: "v-heli", DeparturePoint: l.from, ArrivalPoint: l.to,
			DepartureMinute: 8 * 60, ArrivalMinute: 8*60 + 30, Price: 10000, Active: true,
		})
	}

	clk := &clock{now: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}
	settings := usecases.DefaultSettings()
	settings.Now = clk.Now

	f := &fixture{
		store:    store,
		clock:    clk,
		verifier: &fakeVerifier{},
		gateway:  &fakeGateway{},
	}
	f.resolver = usecases.NewRouteResolver(store, nil, 0)
	f.inventory = usecases.NewInventoryService(store, f.resolver, settings)
	f.holds = usecases.NewHoldService(store, f.resolver, settings)
	f.gateway.capture("order_x", 1_000_000)
	f.bookings = usecases.NewBookingService(store, f.resolver, f.verifier, f.gateway, settings)
	f.cancels = usecases.NewCancellationService(store, f.resolver, f.gateway, settings)
	f.reschedule = usecases.NewRescheduleService(store, f.resolver, f.verifier, f.gateway, settings)
	return f
}

func draft(segmentID string, seats ...string) usecases.BookingDraft {
	return draftN(segmentID, len(seats), seats...)
}

// draftN builds a paid draft for n passengers; seats, when given, are
// assigned in order.
func draftN(segmentID string, n int, seats ...string) usecases.BookingDraft {
	ps := make([]domain.Passenger, n)
	for i := range ps {
		ps[i] = domain.Passenger{Name: fmt.Sprintf("Passenger %d", i+1), Age: 30}
		if i < len(seats) {
			ps[i].SeatLabel = seats[i]
		}
	}
	return usecases.BookingDraft{
		SegmentID:  segmentID,
		Date:       travelDate,
		Passengers: ps,
		Billing:    domain.Billing{Name: "Passenger 1", Email: "p1@example.com"},
		Payment:    domain.Payment{OrderID: "order_x", PaymentID: "pay_x", Signature: "sig", Amount: 1_000_000},
	}
}

func (f *fixture) book(t *testing.T, caller domain.Caller, d usecases.BookingDraft) *usecases.CommitResult {
	t.Helper()
	res, err := f.bookings.Commit(context.Background(), caller, d)
	if err != nil {
		t.Fatalf("commit %s: %v", d.SegmentID, err)
	}
	return res
}

func (f *fixture) available(t *testing.T, segmentID string) int {
	t.Helper()
	a, err := f.inventory.Available(context.Background(), segmentID, travelDate)
	if err != nil {
		t.Fatalf("available %s: %v", segmentID, err)
	}
	return a.AvailableSeats
}

func (f *fixture) booked(segmentID string) int {
	return f.store.Booked(segmentID, domain.FormatDate(travelDate))
}
