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

// RescheduleQuoteRequest asks what moving a booking would cost.
type RescheduleQuoteRequest struct {
	BookingID     string
	NewSegmentID  string
	NewDate       time.Time
	NewSeatLabels []string
	// WaiveFee is honoured for administrators only.
	WaiveFee bool
}

// RescheduleQuoteResult is a persisted quote, with a gateway order when
// payment is due.
type RescheduleQuoteResult struct {
	RequestID    string                 `json:"request_id"`
	Quote        domain.RescheduleQuote `json:"quote"`
	PaymentOrder *ports.PaymentOrder    `json:"payment_order,omitempty"`
}

// RescheduleCommitRequest completes the latest quote of a booking.
type RescheduleCommitRequest struct {
	BookingID string
	// RequestID, when set, must name the latest pending quote.
	RequestID string
	PaymentID string
	Signature string
}

// RescheduleService moves confirmed bookings to another segment or date.
type RescheduleService struct {
	tx       ports.TxManager
	resolver *RouteResolver
	verifier ports.PaymentVerifier
	gateway  ports.PaymentGateway
	settings Settings
}

// NewRescheduleService creates a new RescheduleService.
func NewRescheduleService(tx ports.TxManager, resolver *RouteResolver, verifier ports.PaymentVerifier, gateway ports.PaymentGateway, settings Settings) *RescheduleService {
	return &RescheduleService{tx: tx, resolver: resolver, verifier: verifier, gateway: gateway, settings: settings}
}

// Quote prices a move and stores it, superseding any older pending quote for
// the booking.
func (s *RescheduleService) Quote(ctx context.Context, caller domain.Caller, req RescheduleQuoteRequest) (*RescheduleQuoteResult, error) {
	if req.WaiveFee && !caller.IsAdmin() {
		return nil, domain.ForbiddenError{Msg: "only administrators can waive the rescheduling fee"}
	}
	b, err := s.loadBooking(ctx, caller, req.BookingID)
	if err != nil {
		return nil, err
	}
	now := s.settings.now()
	if err := s.checkCutoff(ctx, b, now); err != nil {
		return nil, err
	}

	newRes, err := s.resolver.Resolve(ctx, req.NewSegmentID)
	if err != nil {
		return nil, err
	}
	if err := checkTravel(&newRes.Segment, req.NewDate, now, s.settings.location()); err != nil {
		return nil, err
	}
	if newRes.Segment.ID == b.SegmentID && domain.NormalizeDate(req.NewDate).Equal(b.TravelDate) {
		return nil, domain.ValidationError{Field: "new_segment_id", Msg: "booking is already on this segment and date"}
	}
	if _, err := assignSeats(newRes, b.Passengers, req.NewSeatLabels); err != nil {
		return nil, err
	}

	quote := s.settings.Reschedule.Quote(b.TotalFare, newRes.Segment.Price, len(b.Passengers), req.WaiveFee)
	quote.PaymentRequired = quote.TotalDue >= s.minimumChargeable()

	rr := &domain.RescheduleRequest{
		ID:            uuid.NewString(),
		BookingID:     b.ID,
		NewSegmentID:  newRes.Segment.ID,
		NewDate:       domain.NormalizeDate(req.NewDate),
		NewSeatLabels: req.NewSeatLabels,
		Quote:         quote,
		Status:        domain.ReschedulePending,
		RequestedBy:   caller.UserID,
		CreatedAt:     now,
	}

	out := &RescheduleQuoteResult{RequestID: rr.ID, Quote: quote}
	if quote.PaymentRequired {
		if s.gateway == nil {
			return nil, fmt.Errorf("reschedule quote: no payment gateway configured")
		}
		order, err := s.gateway.CreateOrder(ctx, quote.TotalDue, b.BookingNumber)
		if err != nil {
			return nil, fmt.Errorf("create payment order: %w", err)
		}
		rr.PaymentOrderID = order.ID
		out.PaymentOrder = order
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Reschedules().Create(ctx, rr)
	})
	if err != nil {
		return nil, err
	}
	metrics.Reschedules.WithLabelValues("quote").Inc()
	logging.FromContext(ctx).Info("reschedule quoted",
		"booking_id", b.ID, "request_id", rr.ID, "total_due", quote.TotalDue, "payment_required", quote.PaymentRequired)
	return out, nil
}

// Commit verifies the quote's payment, then in one transaction releases the
// old capacity, reserves the new and moves the booking.
func (s *RescheduleService) Commit(ctx context.Context, caller domain.Caller, req RescheduleCommitRequest) (result *CommitResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RescheduleService.Commit", telemetry.AttrBookingID.String(req.BookingID))
	defer func() { telemetry.End(span, err) }()

	b, err := s.loadBooking(ctx, caller, req.BookingID)
	if err != nil {
		return nil, err
	}
	rr, err := s.latestPending(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if req.RequestID != "" && req.RequestID != rr.ID {
		return nil, domain.ConflictError{Resource: "reschedule", Msg: "quote superseded"}
	}
	now := s.settings.now()
	if err := s.checkCutoff(ctx, b, now); err != nil {
		return nil, err
	}

	if rr.Quote.PaymentRequired {
		if req.PaymentID == "" || req.Signature == "" {
			return nil, domain.PaymentVerificationError{OrderID: rr.PaymentOrderID, Reason: "payment is required"}
		}
		ok, verr := s.verifier.Verify(ctx, rr.PaymentOrderID, req.PaymentID, req.Signature)
		if verr != nil {
			return nil, domain.PaymentVerificationError{OrderID: rr.PaymentOrderID, Reason: "verifier unavailable", Err: verr}
		}
		if !ok {
			return nil, domain.PaymentVerificationError{OrderID: rr.PaymentOrderID, Reason: "signature mismatch"}
		}
	}

	newRes, err := s.resolver.Resolve(ctx, rr.NewSegmentID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.AttrSegmentID.String(rr.NewSegmentID), telemetry.AttrOverlap.Int(len(newRes.Overlap)))
	if err := checkTravel(&newRes.Segment, rr.NewDate, now, s.settings.location()); err != nil {
		return nil, err
	}
	oldRes, err := s.resolver.Resolve(ctx, b.SegmentID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.ObserveLedgerTx("reschedule", start, err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if !b.Status.Confirmed() {
			return domain.PolicyStateError{Resource: "booking", State: string(b.Status)}
		}
		current, err := tx.Reschedules().LatestPending(ctx, b.ID)
		if err != nil {
			return err
		}
		if current.ID != rr.ID {
			return domain.ConflictError{Resource: "reschedule", Msg: "quote superseded"}
		}

		entries, err := tx.Bookings().LedgerEntries(ctx, b.ID)
		if err != nil {
			return err
		}
		oldKeys := entryKeys(entries)
		newKeys := newRes.Keys(rr.NewDate)
		if err := tx.LockCapacity(ctx, domain.MergeKeys(oldKeys, newKeys)); err != nil {
			return err
		}
		if err := creditEntries(ctx, tx, entries); err != nil {
			return err
		}

		passengers, err := assignSeats(newRes, b.Passengers, rr.NewSeatLabels)
		if err != nil {
			return err
		}
		claim := ports.Claim{
			BookingID:  b.ID,
			Quantity:   len(passengers),
			SeatLabels: rr.NewSeatLabels,
			SeatLimit:  newRes.Vehicle.SeatLimit,
		}
		if newRes.Mode() == domain.CapacityAggregate {
			claim.SeatLabels = nil
		}
		affected, err := reserveInTx(ctx, tx, newRes, rr.NewDate, claim, b.UserID, now)
		if err != nil {
			return err
		}
		released, err := seatsLeft(ctx, tx.Ledger(oldRes.Mode()), subtractKeys(oldKeys, newKeys), oldRes.Vehicle.SeatLimit)
		if err != nil {
			return err
		}
		affected = append(released, affected...)

		b.SegmentID = rr.NewSegmentID
		b.TravelDate = rr.NewDate
		b.Passengers = passengers
		b.TotalFare = rr.Quote.NewTotalFare
		b.RescheduleCount++
		b.UpdatedAt = now
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		completed := now
		rr.Status = domain.RescheduleCompleted
		rr.CompletedAt = &completed
		if err := tx.Reschedules().Update(ctx, rr); err != nil {
			return err
		}

		events, err := capacityEvents(affected, "reschedule", b.ID, now)
		if err != nil {
			return err
		}
		moved, err := bookingEvent("rescheduled", b, now)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, append(events, moved)...); err != nil {
			return err
		}
		result = &CommitResult{Booking: b, AffectedSegments: affected}
		return nil
	})
	if err != nil {
		if domain.IsCapacity(err) {
			metrics.CapacityRejections.WithLabelValues("reschedule").Inc()
		}
		return nil, err
	}

	metrics.Reschedules.WithLabelValues("commit").Inc()
	logging.FromContext(ctx).Info("booking rescheduled",
		"booking_id", result.Booking.ID,
		"segment_id", result.Booking.SegmentID,
		"date", domain.FormatDate(result.Booking.TravelDate),
		"total_fare", result.Booking.TotalFare)
	return result, nil
}

func (s *RescheduleService) loadBooking(ctx context.Context, caller domain.Caller, id string) (*domain.Booking, error) {
	if id == "" {
		return nil, domain.ValidationError{Field: "booking_id", Msg: "is required"}
	}
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
	if !b.Status.Confirmed() {
		return nil, domain.PolicyStateError{Resource: "booking", State: string(b.Status)}
	}
	return b, nil
}

func (s *RescheduleService) latestPending(ctx context.Context, bookingID string) (*domain.RescheduleRequest, error) {
	var rr *domain.RescheduleRequest
	err := s.tx.Read(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		rr, err = tx.Reschedules().LatestPending(ctx, bookingID)
		return err
	})
	return rr, err
}

func (s *RescheduleService) checkCutoff(ctx context.Context, b *domain.Booking, now time.Time) error {
	res, err := s.resolver.Resolve(ctx, b.SegmentID)
	if err != nil {
		return err
	}
	hours := domain.HoursUntil(res.Segment.DepartureAt(b.TravelDate, s.settings.location()), now)
	if hours < s.settings.Reschedule.MinHoursBefore {
		return domain.PolicyStateError{
			Resource: "reschedule",
			State:    "closed",
			Msg:      fmt.Sprintf("departure is %.1fh away, minimum is %.0fh", hours, s.settings.Reschedule.MinHoursBefore),
		}
	}
	return nil
}

func (s *RescheduleService) minimumChargeable() int64 {
	if s.gateway != nil {
		return s.gateway.MinimumChargeable()
	}
	return s.settings.MinChargeable
}

// assignSeats returns the manifest with the new seat labels applied, or with
// labels cleared for an aggregate vehicle.
func assignSeats(res *Resolution, passengers []domain.Passenger, labels []string) ([]domain.Passenger, error) {
	out := make([]domain.Passenger, len(passengers))
	copy(out, passengers)
	if res.Mode() == domain.CapacityAggregate {
		if len(labels) > 0 {
			return nil, domain.ValidationError{Field: "new_seat_labels", Msg: "vehicle does not assign named seats"}
		}
		for i := range out {
			out[i].SeatLabel = ""
		}
		return out, nil
	}
	if len(labels) != len(passengers) {
		return nil, domain.ValidationError{Field: "new_seat_labels", Msg: "one seat per passenger is required"}
	}
	if err := domain.ValidateSeatLabels(labels, res.Vehicle.SeatLimit); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].SeatLabel = labels[i]
	}
	return out, nil
}

func subtractKeys(keys, remove []domain.LedgerKey) []domain.LedgerKey {
	drop := make(map[string]bool, len(remove))
	for _, k := range remove {
		drop[k.String()] = true
	}
	out := make([]domain.LedgerKey, 0, len(keys))
	for _, k := range keys {
		if !drop[k.String()] {
			out = append(out, k)
		}
	}
	return out
}
