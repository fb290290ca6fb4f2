package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
	"github.com/samirrijal/skyhop/internal/pkg/metrics"
	"github.com/samirrijal/skyhop/internal/pkg/telemetry"
)

// BookingDraft is a verified-payment booking request.
type BookingDraft struct {
	SegmentID  string
	Date       time.Time
	Passengers []domain.Passenger
	Billing    domain.Billing
	Payment    domain.Payment
	// HolderID identifies the holds to consume on per-seat vehicles. It
	// defaults to the caller's user ID.
	HolderID string
}

// CommitResult is the booking plus the post-commit remaining seats of every
// record it touched.
type CommitResult struct {
	Booking          *domain.Booking          `json:"booking"`
	AffectedSegments []domain.AffectedSegment `json:"affected_segments"`
}

// BookingService commits bookings atomically across the overlap set.
type BookingService struct {
	tx       ports.TxManager
	resolver *RouteResolver
	verifier ports.PaymentVerifier
	gateway  ports.PaymentGateway
	settings Settings
}

// NewBookingService creates a new BookingService.
func NewBookingService(tx ports.TxManager, resolver *RouteResolver, verifier ports.PaymentVerifier, gateway ports.PaymentGateway, settings Settings) *BookingService {
	return &BookingService{tx: tx, resolver: resolver, verifier: verifier, gateway: gateway, settings: settings}
}

// Commit verifies payment, then in one transaction locks every overlapping
// record, checks the binding availability, debits all records and persists
// the booking. Any failure leaves no partial state.
func (s *BookingService) Commit(ctx context.Context, caller domain.Caller, draft BookingDraft) (result *CommitResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "BookingService.Commit",
		telemetry.AttrSegmentID.String(draft.SegmentID),
		telemetry.AttrTravelDate.String(domain.FormatDate(draft.Date)),
		telemetry.AttrSeats.Int(len(draft.Passengers)),
	)
	defer func() { telemetry.End(span, err) }()

	if caller.UserID == "" {
		return nil, domain.ForbiddenError{Msg: "authentication required"}
	}
	if err := validatePassengers(draft.Passengers); err != nil {
		return nil, err
	}
	if strings.TrimSpace(draft.Billing.Email) == "" {
		return nil, domain.ValidationError{Field: "billing.email", Msg: "is required"}
	}
	if draft.Payment.OrderID == "" || draft.Payment.PaymentID == "" || draft.Payment.Signature == "" {
		return nil, domain.ValidationError{Field: "payment", Msg: "order_id, payment_id and signature are required"}
	}

	res, err := s.resolver.Resolve(ctx, draft.SegmentID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.AttrOverlap.Int(len(res.Overlap)))
	now := s.settings.now()
	if err := checkTravel(&res.Segment, draft.Date, now, s.settings.location()); err != nil {
		return nil, err
	}
	labels, err := claimLabels(res, draft.Passengers)
	if err != nil {
		return nil, err
	}

	if err := s.verifyPayment(ctx, draft.Payment); err != nil {
		return nil, err
	}
	qty := len(draft.Passengers)
	fare := res.Segment.Price * int64(qty)
	paid, err := s.capturedAmount(ctx, draft.Payment.OrderID)
	if err != nil {
		return nil, err
	}
	if paid < fare {
		return nil, domain.PaymentVerificationError{
			OrderID: draft.Payment.OrderID,
			Reason:  fmt.Sprintf("paid %d, fare is %d", paid, fare),
		}
	}
	// the signature covers only the order and payment IDs; the stored amount
	// is what the gateway captured, never the client's figure
	draft.Payment.Amount = paid

	holderID := draft.HolderID
	if holderID == "" {
		holderID = caller.UserID
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		result, err = s.commitOnce(ctx, caller, draft, res, labels, holderID, fare, now)
		if err == nil || !isIdentifierCollision(err) || attempt >= s.settings.attempts() {
			break
		}
		logging.FromContext(ctx).Warn("booking identifier collision, regenerating", "attempt", attempt)
	}
	metrics.ObserveLedgerTx("commit", start, err)
	if err != nil {
		if domain.IsCapacity(err) {
			metrics.CapacityRejections.WithLabelValues("commit").Inc()
		}
		return nil, err
	}

	metrics.BookingsCommitted.WithLabelValues(string(res.Mode())).Inc()
	span.SetAttributes(telemetry.AttrBookingID.String(result.Booking.ID))
	logging.FromContext(ctx).Info("booking committed",
		"booking_id", result.Booking.ID,
		"pnr", result.Booking.PNR,
		"segment_id", draft.SegmentID,
		"date", domain.FormatDate(draft.Date),
		"passengers", qty,
		"overlap", len(res.Overlap))
	return result, nil
}

func (s *BookingService) commitOnce(ctx context.Context, caller domain.Caller, draft BookingDraft, res *Resolution, labels []string, holderID string, fare int64, now time.Time) (*CommitResult, error) {
	pnr, err := generatePNR()
	if err != nil {
		return nil, fmt.Errorf("generate pnr: %w", err)
	}
	number, err := generateBookingNumber(now)
	if err != nil {
		return nil, fmt.Errorf("generate booking number: %w", err)
	}
	booking := &domain.Booking{
		ID:            uuid.NewString(),
		PNR:           pnr,
		BookingNumber: number,
		UserID:        caller.UserID,
		SegmentID:     draft.SegmentID,
		TravelDate:    domain.NormalizeDate(draft.Date),
		Status:        domain.BookingConfirmed,
		Passengers:    draft.Passengers,
		Billing:       draft.Billing,
		Payment:       draft.Payment,
		TotalFare:     fare,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	claim := ports.Claim{
		BookingID:  booking.ID,
		Quantity:   len(draft.Passengers),
		SeatLabels: labels,
		SeatLimit:  res.Vehicle.SeatLimit,
	}

	var affected []domain.AffectedSegment
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		// ledger rows reference the booking, so it is written first
		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return err
		}
		var err error
		affected, err = reserveInTx(ctx, tx, res, booking.TravelDate, claim, holderID, now)
		if err != nil {
			return err
		}
		events, err := capacityEvents(affected, "booking", booking.ID, now)
		if err != nil {
			return err
		}
		confirmed, err := bookingEvent("confirmed", booking, now)
		if err != nil {
			return err
		}
		return tx.Outbox().Append(ctx, append(events, confirmed)...)
	})
	if err != nil {
		return nil, err
	}
	return &CommitResult{Booking: booking, AffectedSegments: affected}, nil
}

func (s *BookingService) verifyPayment(ctx context.Context, p domain.Payment) error {
	ok, err := s.verifier.Verify(ctx, p.OrderID, p.PaymentID, p.Signature)
	if err != nil {
		return domain.PaymentVerificationError{OrderID: p.OrderID, Reason: "verifier unavailable", Err: err}
	}
	if !ok {
		return domain.PaymentVerificationError{OrderID: p.OrderID, Reason: "signature mismatch"}
	}
	return nil
}

// capturedAmount asks the gateway what was actually paid against orderID.
func (s *BookingService) capturedAmount(ctx context.Context, orderID string) (int64, error) {
	if s.gateway == nil {
		return 0, domain.PaymentVerificationError{OrderID: orderID, Reason: "no payment gateway configured"}
	}
	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return 0, domain.PaymentVerificationError{OrderID: orderID, Reason: "order lookup failed", Err: err}
	}
	if order.ID != "" && order.ID != orderID {
		return 0, domain.PaymentVerificationError{OrderID: orderID, Reason: "gateway returned a different order"}
	}
	return order.AmountPaid, nil
}

// Get returns a booking visible to the caller.
func (s *BookingService) Get(ctx context.Context, caller domain.Caller, id string) (*domain.Booking, error) {
	var b *domain.Booking
	err := s.tx.Read(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		b, err = tx.Bookings().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(caller) {
		return nil, domain.ForbiddenError{Msg: "booking belongs to another user"}
	}
	return b, nil
}

// GetByPNR looks a booking up by its locator. It does not check ownership;
// callers compare the result against the caller.
func (s *BookingService) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	pnr = strings.ToUpper(strings.TrimSpace(pnr))
	if len(pnr) != pnrLength {
		return nil, domain.ValidationError{Field: "pnr", Msg: fmt.Sprintf("must be %d characters", pnrLength)}
	}
	var b *domain.Booking
	err := s.tx.Read(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		b, err = tx.Bookings().GetByPNR(ctx, pnr)
		return err
	})
	return b, err
}

// List returns the caller's bookings, newest first.
func (s *BookingService) List(ctx context.Context, caller domain.Caller, offset, limit int) ([]domain.Booking, int, error) {
	if caller.UserID == "" {
		return nil, 0, domain.ForbiddenError{Msg: "authentication required"}
	}
	var (
		list  []domain.Booking
		total int
	)
	err := s.tx.Read(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		list, total, err = tx.Bookings().ListByUser(ctx, caller.UserID, offset, limit)
		return err
	})
	return list, total, err
}

func validatePassengers(ps []domain.Passenger) error {
	if len(ps) == 0 {
		return domain.ValidationError{Field: "passengers", Msg: "at least one passenger is required"}
	}
	for i, p := range ps {
		if strings.TrimSpace(p.Name) == "" {
			return domain.ValidationError{Field: fmt.Sprintf("passengers[%d].name", i), Msg: "is required"}
		}
		if p.Age < 0 {
			return domain.ValidationError{Field: fmt.Sprintf("passengers[%d].age", i), Msg: "must not be negative"}
		}
	}
	return nil
}

// claimLabels checks the manifest's seat assignments against the vehicle's
// capacity mode.
func claimLabels(res *Resolution, ps []domain.Passenger) ([]string, error) {
	labels := make([]string, 0, len(ps))
	for _, p := range ps {
		if p.SeatLabel != "" {
			labels = append(labels, p.SeatLabel)
		}
	}
	if res.Mode() == domain.CapacityAggregate {
		if len(labels) > 0 {
			return nil, domain.ValidationError{Field: "seat_label", Msg: "vehicle does not assign named seats"}
		}
		return nil, nil
	}
	if len(labels) != len(ps) {
		return nil, domain.ValidationError{Field: "seat_label", Msg: "every passenger needs a seat"}
	}
	if err := domain.ValidateSeatLabels(labels, res.Vehicle.SeatLimit); err != nil {
		return nil, err
	}
	return labels, nil
}

func isIdentifierCollision(err error) bool {
	var ce domain.ConflictError
	return errors.As(err, &ce) && ce.Resource == "booking"
}
