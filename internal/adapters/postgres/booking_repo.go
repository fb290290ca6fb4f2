package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// BookingRepo implements ports.BookingRepository.
type BookingRepo struct {
	q querier
}

const bookingColumns = `
	id, pnr, booking_number, user_id, segment_id, travel_date, status,
	passengers, billing, payment_order_id, payment_id, payment_amount,
	total_fare, cancellation_charge, refund_amount, cancel_reason, cancelled_at,
	reschedule_count, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.PNR, &b.BookingNumber, &b.UserID, &b.SegmentID, &b.TravelDate, &b.Status,
		&b.Passengers, &b.Billing, &b.Payment.OrderID, &b.Payment.PaymentID, &b.Payment.Amount,
		&b.TotalFare, &b.CancellationCharge, &b.RefundAmount, &b.CancelReason, &b.CancelledAt,
		&b.RescheduleCount, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, b.ID, b.PNR, b.BookingNumber, b.UserID, b.SegmentID, domain.NormalizeDate(b.TravelDate), string(b.Status),
		b.Passengers, b.Billing, b.Payment.OrderID, b.Payment.PaymentID, b.Payment.Amount,
		b.TotalFare, b.CancellationCharge, b.RefundAmount, b.CancelReason, b.CancelledAt,
		b.RescheduleCount, b.CreatedAt, b.UpdatedAt)
	return mapError("insert booking", err)
}

func (r *BookingRepo) Get(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("booking", err)
	}
	return b, nil
}

func (r *BookingRepo) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound("booking", err)
	}
	return b, nil
}

func (r *BookingRepo) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE pnr = $1`, pnr))
	if err != nil {
		return nil, notFound("booking", err)
	}
	return b, nil
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Booking, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, mapError("count bookings", err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, 0, mapError("list bookings", err)
	}
	defer rows.Close()

	list := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *b)
	}
	return list, total, mapError("list bookings", rows.Err())
}

func (r *BookingRepo) Update(ctx context.Context, b *domain.Booking) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE bookings SET
			segment_id = $2, travel_date = $3, status = $4, passengers = $5,
			total_fare = $6, cancellation_charge = $7, refund_amount = $8,
			cancel_reason = $9, cancelled_at = $10, reschedule_count = $11, updated_at = $12
		WHERE id = $1
	`, b.ID, b.SegmentID, domain.NormalizeDate(b.TravelDate), string(b.Status), b.Passengers,
		b.TotalFare, b.CancellationCharge, b.RefundAmount,
		b.CancelReason, b.CancelledAt, b.RescheduleCount, b.UpdatedAt)
	if err != nil {
		return mapError("update booking", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundError{Resource: "booking"}
	}
	return nil
}

func (r *BookingRepo) LedgerEntries(ctx context.Context, bookingID string) ([]domain.LedgerEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT booking_id, segment_id, travel_date, mode, quantity, seat_labels
		FROM booking_ledger_entries
		WHERE booking_id = $1
		ORDER BY segment_id, travel_date
	`, bookingID)
	if err != nil {
		return nil, mapError("ledger entries", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.BookingID, &e.SegmentID, &e.Date, &e.Mode, &e.Quantity, &e.SeatLabels); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, mapError("ledger entries", rows.Err())
}
