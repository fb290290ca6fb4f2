package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
	"github.com/samirrijal/skyhop/internal/pkg/metrics"
	"github.com/samirrijal/skyhop/internal/pkg/telemetry"
)

// CancelMode selects how an administrator cancellation is priced.
type CancelMode string

const (
	CancelModePolicy     CancelMode = "policy"
	CancelModeFullRefund CancelMode = "full_refund"
)

// Valid reports whether m is a known mode.
func (m CancelMode) Valid() bool {
	return m == CancelModePolicy || m == CancelModeFullRefund
}

// CancelResult is the cancelled booking, its refund record and the released
// capacity.
type CancelResult struct {
	Booking          *domain.Booking          `json:"booking"`
	Refund           *domain.RefundRecord     `json:"refund"`
	AffectedSegments []domain.AffectedSegment `json:"affected_segments"`
}

// RefundDecision is an administrator's verdict on a pending refund.
type RefundDecision string

const (
	RefundApprove RefundDecision = "approve"
	RefundReject  RefundDecision = "reject"
)

// CancellationService cancels bookings, returns capacity and manages the
// refund lifecycle.
type CancellationService struct {
	tx       ports.TxManager
	resolver *RouteResolver
	gateway  ports.PaymentGateway
	settings Settings
}

// NewCancellationService creates a new CancellationService. gateway is only
// needed for settlement.
func NewCancellationService(tx ports.TxManager, resolver *RouteResolver, gateway ports.PaymentGateway, settings Settings) *CancellationService {
	return &CancellationService{tx: tx, resolver: resolver, gateway: gateway, settings: settings}
}

// Cancel cancels the caller's booking under the tiered refund policy.
func (s *CancellationService) Cancel(ctx context.Context, caller domain.Caller, bookingID, reason string) (*CancelResult, error) {
	return s.cancel(ctx, caller, bookingID, reason, "")
}

// AdminCancel cancels any booking. In full-refund mode no charge applies;
// either way the refund is approved on the spot.
func (s *CancellationService) AdminCancel(ctx context.Context, caller domain.Caller, bookingID, reason string, mode CancelMode) (*CancelResult, error) {
	if !caller.IsAdmin() {
		return nil, domain.ForbiddenError{Msg: "administrator role required"}
	}
	if !mode.Valid() {
		return nil, domain.ValidationError{Field: "mode", Msg: fmt.Sprintf("unknown cancel mode %q", mode)}
	}
	return s.cancel(ctx, caller, bookingID, reason, mode)
}

// cancel is shared by both paths; an empty mode is the customer path.
func (s *CancellationService) cancel(ctx context.Context, caller domain.Caller, bookingID, reason string, mode CancelMode) (result *CancelResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "CancellationService.Cancel", telemetry.AttrBookingID.String(bookingID))
	defer func() { telemetry.End(span, err) }()

	if bookingID == "" {
		return nil, domain.ValidationError{Field: "booking_id", Msg: "is required"}
	}
	now := s.settings.now()
	start := time.Now()
	defer func() { metrics.ObserveLedgerTx("cancel", start, err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.OwnedBy(caller) {
			return domain.ForbiddenError{Msg: "booking belongs to another user"}
		}
		if !b.Status.Confirmed() {
			return domain.PolicyStateError{Resource: "booking", State: string(b.Status)}
		}

		res, err := s.resolver.Resolve(ctx, b.SegmentID)
		if err != nil {
			return err
		}
		hours := domain.HoursUntil(res.Segment.DepartureAt(b.TravelDate, s.settings.location()), now)
		quote := s.settings.Refund.Quote(b.TotalFare, hours)
		if mode == CancelModeFullRefund {
			quote = domain.FullRefund(b.TotalFare, hours)
		}

		entries, err := tx.Bookings().LedgerEntries(ctx, b.ID)
		if err != nil {
			return err
		}
		keys := entryKeys(entries)
		if err := tx.LockCapacity(ctx, keys); err != nil {
			return err
		}
		if err := creditEntries(ctx, tx, entries); err != nil {
			return err
		}
		affected, err := seatsLeft(ctx, tx.Ledger(res.Mode()), keys, res.Vehicle.SeatLimit)
		if err != nil {
			return err
		}

		cancelledAt := now
		b.Status = domain.BookingCancelled
		b.CancellationCharge = quote.CancellationCharge
		b.RefundAmount = quote.RefundAmount
		b.CancelReason = reason
		b.CancelledAt = &cancelledAt
		b.UpdatedAt = now
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}

		refund := newRefundRecord(b, quote, reason, caller, mode, now)
		if err := tx.Refunds().Create(ctx, refund); err != nil {
			return err
		}

		events, err := capacityEvents(affected, "cancellation", b.ID, now)
		if err != nil {
			return err
		}
		cancelled, err := bookingEvent("cancelled", b, now)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, append(events, cancelled)...); err != nil {
			return err
		}

		result = &CancelResult{Booking: b, Refund: refund, AffectedSegments: affected}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Cancellations.WithLabelValues(string(result.Refund.Tier)).Inc()
	span.SetAttributes(telemetry.AttrRefundTier.String(string(result.Refund.Tier)))
	logging.FromContext(ctx).Info("booking cancelled",
		"booking_id", bookingID,
		"tier", result.Refund.Tier,
		"refund", result.Refund.RefundAmount,
		"charge", result.Refund.CancellationCharge,
		"hours_before_departure", result.Refund.HoursBeforeDeparture)
	return result, nil
}

func newRefundRecord(b *domain.Booking, q domain.RefundQuote, reason string, caller domain.Caller, mode CancelMode, now time.Time) *domain.RefundRecord {
	r := &domain.RefundRecord{
		ID:                   uuid.NewString(),
		BookingID:            b.ID,
		OriginalFare:         b.TotalFare,
		RefundAmount:         q.RefundAmount,
		CancellationCharge:   q.CancellationCharge,
		Tier:                 q.Tier,
		Status:               domain.RefundNotApplicable,
		HoursBeforeDeparture: q.HoursBeforeDeparture,
		Reason:               reason,
		RequestedBy:          caller.UserID,
		CreatedAt:            now,
	}
	if q.RefundAmount <= 0 {
		return r
	}
	r.Status = domain.RefundPending
	// administrator cancellations are approved on the spot
	if mode.Valid() {
		r.Status = domain.RefundApproved
		r.ProcessedBy = caller.UserID
		processed := now
		r.ProcessedAt = &processed
	}
	return r
}

// ProcessRefund approves or rejects a pending refund exactly once.
func (s *CancellationService) ProcessRefund(ctx context.Context, caller domain.Caller, refundID string, decision RefundDecision, note string) (*domain.RefundRecord, error) {
	if !caller.IsAdmin() {
		return nil, domain.ForbiddenError{Msg: "administrator role required"}
	}
	var next domain.RefundStatus
	switch decision {
	case RefundApprove:
		next = domain.RefundApproved
	case RefundReject:
		next = domain.RefundRejected
	default:
		return nil, domain.ValidationError{Field: "decision", Msg: "must be approve or reject"}
	}

	now := s.settings.now()
	var out *domain.RefundRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		r, err := tx.Refunds().GetForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		if r.Status != domain.RefundPending {
			return domain.PolicyStateError{Resource: "refund", State: string(r.Status), Msg: "only pending refunds can be decided"}
		}
		processed := now
		r.Status = next
		r.ProcessedBy = caller.UserID
		r.ProcessedAt = &processed
		r.DecisionNote = note
		if err := tx.Refunds().Update(ctx, r); err != nil {
			return err
		}
		ev, err := refundEvent(r, now)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, ev); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RefundDecisions.WithLabelValues(string(out.Status)).Inc()
	logging.FromContext(ctx).Info("refund decided", "refund_id", out.ID, "status", out.Status, "by", caller.UserID)
	return out, nil
}

// ListRefunds returns refunds in a given status for the admin queue.
func (s *CancellationService) ListRefunds(ctx context.Context, caller domain.Caller, status domain.RefundStatus, limit int) ([]domain.RefundRecord, error) {
	if !caller.IsAdmin() {
		return nil, domain.ForbiddenError{Msg: "administrator role required"}
	}
	if status == "" {
		status = domain.RefundPending
	}
	return s.listByStatus(ctx, status, limit)
}

// ListApproved feeds the settlement sweep.
func (s *CancellationService) ListApproved(ctx context.Context, limit int) ([]domain.RefundRecord, error) {
	return s.listByStatus(ctx, domain.RefundApproved, limit)
}

func (s *CancellationService) listByStatus(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.RefundRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []domain.RefundRecord
	err := s.tx.Read(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		out, err = tx.Refunds().ListByStatus(ctx, status, limit)
		return err
	})
	return out, err
}

// RefundsForBooking lists the refund history of a booking visible to caller.
func (s *CancellationService) RefundsForBooking(ctx context.Context, caller domain.Caller, bookingID string) ([]domain.RefundRecord, error) {
	var out []domain.RefundRecord
	err := s.tx.Read(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := tx.Bookings().Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.OwnedBy(caller) {
			return domain.ForbiddenError{Msg: "booking belongs to another user"}
		}
		out, err = tx.Refunds().ListByBooking(ctx, bookingID)
		return err
	})
	return out, err
}

// SettleRefund pays out an approved refund through the gateway and marks it
// processed. The refund row stays locked across the gateway call so two
// sweepers cannot pay twice; the refund ID is the gateway reference.
func (s *CancellationService) SettleRefund(ctx context.Context, refundID string) (*domain.RefundRecord, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("settle refund: no payment gateway configured")
	}
	now := s.settings.now()
	var out *domain.RefundRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		r, err := tx.Refunds().GetForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		if r.Status != domain.RefundApproved {
			return domain.PolicyStateError{Resource: "refund", State: string(r.Status), Msg: "only approved refunds can be settled"}
		}
		b, err := tx.Bookings().Get(ctx, r.BookingID)
		if err != nil {
			return err
		}
		payout, err := s.gateway.Refund(ctx, b.Payment.PaymentID, r.RefundAmount, r.ID)
		if err != nil {
			return fmt.Errorf("gateway refund %s: %w", r.ID, err)
		}
		processed := now
		r.Status = domain.RefundProcessed
		r.PayoutReference = payout
		r.ProcessedAt = &processed
		if err := tx.Refunds().Update(ctx, r); err != nil {
			return err
		}
		ev, err := refundEvent(r, now)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, ev); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RefundDecisions.WithLabelValues(string(out.Status)).Inc()
	logging.FromContext(ctx).Info("refund settled", "refund_id", out.ID, "payout", out.PayoutReference, "amount", out.RefundAmount)
	return out, nil
}

func refundEvent(r *domain.RefundRecord, now time.Time) (domain.OutboxEvent, error) {
	return newEvent("refund", r.ID, "refund.decided", RefundSubject(r.Status), map[string]any{
		"refund_id":     r.ID,
		"booking_id":    r.BookingID,
		"status":        r.Status,
		"refund_amount": r.RefundAmount,
		"tier":          r.Tier,
	}, now)
}

// RefundSubject is the broker subject for refund transitions.
func RefundSubject(status domain.RefundStatus) string {
	return "reservations.refund." + string(status)
}
