//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/skyhop/internal/adapters/postgres"
	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/core/usecases"
	"github.com/samirrijal/skyhop/internal/pkg/config"
)

type okVerifier struct{}

func (okVerifier) Verify(ctx context.Context, orderID, paymentID, signature string) (bool, error) {
	return true, nil
}

type paidGateway struct{}

func (paidGateway) CreateOrder(ctx context.Context, amount int64, receipt string) (*ports.PaymentOrder, error) {
	return &ports.PaymentOrder{ID: "order_it", Amount: amount, Receipt: receipt}, nil
}

func (paidGateway) FetchOrder(ctx context.Context, orderID string) (*ports.PaymentOrder, error) {
	return &ports.PaymentOrder{ID: orderID, Amount: 1 << 40, AmountPaid: 1 << 40, Status: "paid"}, nil
}

func (paidGateway) Refund(ctx context.Context, paymentID string, amount int64, reference string) (string, error) {
	return "rfnd_" + reference, nil
}

func (paidGateway) MinimumChargeable() int64 { return 100 }

// setupTestDB connects to the test database and applies the schema.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	cfg, err := config.Load("skyhop-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	schema, err := os.ReadFile("../../../migrations/001_reservations.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// seedVehicle inserts a fresh A-B-C vehicle with three legs and returns the
// segment IDs keyed by leg.
func seedVehicle(t *testing.T, db *postgres.DB, kind domain.VehicleKind, seats int) map[string]string {
	t.Helper()
	suffix := uuid.NewString()[:8]
	v := domain.Vehicle{
		ID: "v-" + suffix, Code: "9N-" + suffix, Kind: kind,
		StartPoint: "A", EndPoint: "C", IntermediateStops: []string{"B"}, SeatLimit: seats,
	}
	legs := map[string]string{"ab": "ab-" + suffix, "ac": "ac-" + suffix, "bc": "bc-" + suffix}
	segs := []domain.ScheduleSegment{
		{ID: legs["ab"], VehicleID: v.ID, DeparturePoint: "A", ArrivalPoint: "B", DepartureMinute: 480, ArrivalMinute: 510, Price: 1000, Active: true},
		{ID: legs["ac"], VehicleID: v.ID, DeparturePoint: "A", ArrivalPoint: "C", DepartureMinute: 480, ArrivalMinute: 560, Price: 1800, Active: true},
		{ID: legs["bc"], VehicleID: v.ID, DeparturePoint: "B", ArrivalPoint: "C", DepartureMinute: 520, ArrivalMinute: 560, Price: 1000, Active: true},
	}
	if err := postgres.NewTimetableRepo(db).UpsertTimetable(context.Background(), []domain.Vehicle{v}, segs); err != nil {
		t.Fatalf("seed timetable: %v", err)
	}
	return legs
}

func services(db *postgres.DB) (*usecases.BookingService, *usecases.CancellationService, *usecases.HoldService, *usecases.InventoryService) {
	tx := postgres.NewTxManager(db)
	resolver := usecases.NewRouteResolver(postgres.NewTimetableRepo(db), nil, 0)
	settings := usecases.DefaultSettings()
	return usecases.NewBookingService(tx, resolver, okVerifier{}, paidGateway{}, settings),
		usecases.NewCancellationService(tx, resolver, nil, settings),
		usecases.NewHoldService(tx, resolver, settings),
		usecases.NewInventoryService(tx, resolver, settings)
}

func passengers(n int, seats ...string) []domain.Passenger {
	out := make([]domain.Passenger, n)
	for i := range out {
		out[i] = domain.Passenger{Name: "Integration Passenger"}
		if i < len(seats) {
			out[i].SeatLabel = seats[i]
		}
	}
	return out
}

func draft(segmentID string, date time.Time, ps []domain.Passenger) usecases.BookingDraft {
	return usecases.BookingDraft{
		SegmentID:  segmentID,
		Date:       date,
		Passengers: ps,
		Billing:    domain.Billing{Name: "Integration", Email: "it@example.com"},
		Payment:    domain.Payment{OrderID: "o", PaymentID: "p", Signature: "s", Amount: 1 << 40},
	}
}

func TestLedger_ConcurrentCommitsNeverOversell(t *testing.T) {
	db := setupTestDB(t)
	legs := seedVehicle(t, db, domain.VehicleAircraft, 5)
	bookings, _, _, inventory := services(db)
	date := domain.NormalizeDate(time.Now().AddDate(0, 0, 14))
	caller := domain.Caller{UserID: "it-user", Role: domain.RoleCustomer}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			leg := []string{"ab", "ac", "bc"}[i%3]
			_, err := bookings.Commit(context.Background(), caller, draft(legs[leg], date, passengers(1)))
			switch {
			case err == nil:
				mu.Lock()
				ok++
				mu.Unlock()
			case domain.IsCapacity(err), domain.IsTransaction(err):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	a, err := inventory.Available(context.Background(), legs["ac"], date)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	// Every leg overlaps A-C, so its record sees every committed seat.
	if ok > 5 || a.AvailableSeats != 5-ok {
		t.Fatalf("oversold: %d commits, %d seats left on A-C", ok, a.AvailableSeats)
	}
}

func TestLedger_CancelCreditsExactDebits(t *testing.T) {
	db := setupTestDB(t)
	legs := seedVehicle(t, db, domain.VehicleRotorcraft, 3)
	bookings, cancels, holds, inventory := services(db)
	date := domain.NormalizeDate(time.Now().AddDate(0, 0, 10))
	caller := domain.Caller{UserID: "it-" + uuid.NewString()[:6], Role: domain.RoleCustomer}
	ctx := context.Background()

	if _, err := holds.Hold(ctx, usecases.HoldRequest{SegmentID: legs["ab"], Date: date, SeatLabels: []string{"S2"}, HolderID: "someone-else"}); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := bookings.Commit(ctx, caller, draft(legs["ac"], date, passengers(1, "S2"))); !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError on a seat held on an overlapping leg, got %v", err)
	}

	res, err := bookings.Commit(ctx, caller, draft(legs["ac"], date, passengers(1, "S1")))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if a, _ := inventory.Available(ctx, legs["bc"], date); a.AvailableSeats != 2 {
		t.Fatalf("expected 2 seats on bc, got %+v", a)
	}

	if _, err := cancels.Cancel(ctx, caller, res.Booking.ID, "integration"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if a, _ := inventory.Available(ctx, legs["bc"], date); a.AvailableSeats != 3 {
		t.Fatalf("expected capacity restored on bc, got %+v", a)
	}
	if _, err := cancels.Cancel(ctx, caller, res.Booking.ID, "again"); !domain.IsPolicyState(err) {
		t.Fatalf("expected PolicyStateError, got %v", err)
	}
}

func TestCommit_SingleLegPersistsBookingAndEntries(t *testing.T) {
	ctx := context.Background()
	for _, kind := range []domain.VehicleKind{domain.VehicleAircraft, domain.VehicleRotorcraft} {
		t.Run(string(kind), func(t *testing.T) {
			db := setupTestDB(t)
			legs := seedVehicle(t, db, kind, 4)
			bookings, _, _, inventory := services(db)
			date := domain.NormalizeDate(time.Now().AddDate(0, 0, 21))
			caller := domain.Caller{UserID: "it-" + uuid.NewString()[:6], Role: domain.RoleCustomer}

			seats := []string(nil)
			if kind == domain.VehicleRotorcraft {
				seats = []string{"S1"}
			}
			res, err := bookings.Commit(ctx, caller, draft(legs["ab"], date, passengers(1, seats...)))
			if err != nil {
				t.Fatalf("commit: %v", err)
			}

			got, err := bookings.Get(ctx, caller, res.Booking.ID)
			if err != nil || got.Status != domain.BookingConfirmed {
				t.Fatalf("booking not persisted: %+v %v", got, err)
			}
			var entries []domain.LedgerEntry
			err = postgres.NewTxManager(db).Read(ctx, func(ctx context.Context, tx ports.Tx) error {
				var err error
				entries, err = tx.Bookings().LedgerEntries(ctx, res.Booking.ID)
				return err
			})
			if err != nil || len(entries) != 2 {
				t.Fatalf("expected entries on ab and ac, got %+v %v", entries, err)
			}
			if a, _ := inventory.Available(ctx, legs["bc"], date); a.AvailableSeats != 3 {
				t.Fatalf("A-B booking should debit A-C and so B-C, got %+v", a)
			}
		})
	}
}
