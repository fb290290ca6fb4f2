package workflows_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/skyhop/internal/adapters/memory"
	"github.com/samirrijal/skyhop/internal/adapters/payment"
	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/core/usecases"
	"github.com/samirrijal/skyhop/internal/workflows"
)

type recordingGateway struct {
	refunds []string
}

func (g *recordingGateway) CreateOrder(ctx context.Context, amount int64, receipt string) (*ports.PaymentOrder, error) {
	return &ports.PaymentOrder{ID: "order_x", Amount: amount, Receipt: receipt}, nil
}

func (g *recordingGateway) Refund(ctx context.Context, paymentID string, amount int64, reference string) (string, error) {
	g.refunds = append(g.refunds, reference)
	return "rfnd_" + reference, nil
}

func (g *recordingGateway) FetchOrder(ctx context.Context, orderID string) (*ports.PaymentOrder, error) {
	return &ports.PaymentOrder{ID: orderID, Amount: 5000, AmountPaid: 5000, Status: "paid"}, nil
}

func (g *recordingGateway) MinimumChargeable() int64 { return 100 }

func TestSettlementSweep_PaysApprovedRefunds(t *testing.T) {
	store := memory.NewStore()
	store.AddVehicle(domain.Vehicle{
		ID: "v1", Code: "9N-ABC", Kind: domain.VehicleAircraft,
		StartPoint: "A", EndPoint: "B", SeatLimit: 4,
	})
	store.AddSegment(domain.ScheduleSegment{
		ID: "s-ab", VehicleID: "v1", DeparturePoint: "A", ArrivalPoint: "B",
		DepartureMinute: 9 * 60, ArrivalMinute: 10 * 60, Price: 5000, Active: true,
	})

	settings := usecases.DefaultSettings()
	settings.Now = func() time.Time { return time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC) }
	resolver := usecases.NewRouteResolver(store, nil, 0)
	gw := &recordingGateway{}
	bookings := usecases.NewBookingService(store, resolver, payment.NewSignatureVerifier("k"), gw, settings)
	cancels := usecases.NewCancellationService(store, resolver, gw, settings)

	ctx := context.Background()
	customer := domain.Caller{UserID: "u1", Role: domain.RoleCustomer}
	admin := domain.Caller{UserID: "ops", Role: domain.RoleAdmin}
	date := time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		res, err := bookings.Commit(ctx, customer, usecases.BookingDraft{
			SegmentID:  "s-ab",
			Date:       date,
			Passengers: []domain.Passenger{{Name: "Traveller", Age: 40}},
			Billing:    domain.Billing{Name: "Traveller", Email: "t@example.com"},
			Payment: domain.Payment{
				OrderID: "order_1", PaymentID: "pay_1", Amount: 5000,
				Signature: payment.Sign([]byte("k"), "order_1", "pay_1"),
			},
		})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		if _, err := cancels.AdminCancel(ctx, admin, res.Booking.ID, "weather", usecases.CancelModeFullRefund); err != nil {
			t.Fatalf("admin cancel: %v", err)
		}
	}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.SettlementSweepWorkflow)
	env.RegisterActivity(&workflows.SettlementActivities{
		Holds:   usecases.NewHoldService(store, resolver, settings),
		Refunds: cancels,
	})

	env.ExecuteWorkflow(workflows.SettlementSweepWorkflow, workflows.SweepInput{BatchSize: 10})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var result workflows.SweepResult
	if err := env.GetWorkflowResult(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Settled) != 2 || len(result.Failed) != 0 {
		t.Fatalf("expected 2 settled, got %+v", result)
	}
	if len(gw.refunds) != 2 {
		t.Fatalf("expected 2 gateway refunds, got %v", gw.refunds)
	}
	for _, r := range store.Refunds() {
		if r.Status != domain.RefundProcessed || r.PayoutReference != "rfnd_"+r.ID {
			t.Errorf("refund %s: status %s payout %q", r.ID, r.Status, r.PayoutReference)
		}
	}
}

func TestSettlementSweep_OneFailureDoesNotStopBatch(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.SettlementSweepWorkflow)
	acts := &workflows.SettlementActivities{}
	env.RegisterActivity(acts)

	env.OnActivity(acts.PurgeExpiredHolds, mock.Anything).Return(int64(0), errors.New("db down"))
	env.OnActivity(acts.ListApprovedRefunds, mock.Anything, 50).Return([]string{"r1", "r2", "r3"}, nil)
	env.OnActivity(acts.SettleRefund, mock.Anything, "r1").Return("rfnd_r1", nil)
	env.OnActivity(acts.SettleRefund, mock.Anything, "r2").
		Return("", temporal.NewNonRetryableApplicationError("refund is PROCESSED", workflows.ErrRefundNotSettleable, nil))
	env.OnActivity(acts.SettleRefund, mock.Anything, "r3").Return("", errors.New("gateway timeout"))

	env.ExecuteWorkflow(workflows.SettlementSweepWorkflow, workflows.SweepInput{BatchSize: 50})
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var result workflows.SweepResult
	if err := env.GetWorkflowResult(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Settled) != 1 || result.Settled[0] != "r1" {
		t.Errorf("settled: %v", result.Settled)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "r2" {
		t.Errorf("skipped: %v", result.Skipped)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "r3" {
		t.Errorf("failed: %v", result.Failed)
	}
}

func TestSettlementSweep_ListFailureFailsRun(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.SettlementSweepWorkflow)
	acts := &workflows.SettlementActivities{}
	env.RegisterActivity(acts)

	env.OnActivity(acts.PurgeExpiredHolds, mock.Anything).Return(int64(3), nil)
	env.OnActivity(acts.ListApprovedRefunds, mock.Anything, 10).Return([]string(nil), errors.New("db down"))

	env.ExecuteWorkflow(workflows.SettlementSweepWorkflow, workflows.SweepInput{BatchSize: 10})
	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
}
