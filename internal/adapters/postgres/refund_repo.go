package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	q querier
}

const refundColumns = `
	id, booking_id, original_fare, refund_amount, cancellation_charge, tier, status,
	hours_before_departure, reason, requested_by, processed_by, processed_at,
	decision_note, payout_reference, created_at`

func scanRefund(row pgx.Row) (*domain.RefundRecord, error) {
	var r domain.RefundRecord
	err := row.Scan(
		&r.ID, &r.BookingID, &r.OriginalFare, &r.RefundAmount, &r.CancellationCharge, &r.Tier, &r.Status,
		&r.HoursBeforeDeparture, &r.Reason, &r.RequestedBy, &r.ProcessedBy, &r.ProcessedAt,
		&r.DecisionNote, &r.PayoutReference, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *RefundRepo) Create(ctx context.Context, rec *domain.RefundRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO refunds (`+refundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, rec.ID, rec.BookingID, rec.OriginalFare, rec.RefundAmount, rec.CancellationCharge, string(rec.Tier), string(rec.Status),
		rec.HoursBeforeDeparture, rec.Reason, rec.RequestedBy, rec.ProcessedBy, rec.ProcessedAt,
		rec.DecisionNote, rec.PayoutReference, rec.CreatedAt)
	return mapError("insert refund", err)
}

func (r *RefundRepo) Get(ctx context.Context, id string) (*domain.RefundRecord, error) {
	rec, err := scanRefund(r.q.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("refund", err)
	}
	return rec, nil
}

func (r *RefundRepo) GetForUpdate(ctx context.Context, id string) (*domain.RefundRecord, error) {
	rec, err := scanRefund(r.q.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound("refund", err)
	}
	return rec, nil
}

func (r *RefundRepo) ListByStatus(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.RefundRecord, error) {
	return r.list(ctx, `SELECT `+refundColumns+` FROM refunds WHERE status = $1 ORDER BY created_at, id LIMIT $2`, string(status), limit)
}

func (r *RefundRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.RefundRecord, error) {
	return r.list(ctx, `SELECT `+refundColumns+` FROM refunds WHERE booking_id = $1 ORDER BY created_at, id`, bookingID)
}

func (r *RefundRepo) list(ctx context.Context, sql string, args ...any) ([]domain.RefundRecord, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("list refunds", err)
	}
	defer rows.Close()

	var out []domain.RefundRecord
	for rows.Next() {
		rec, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, mapError("list refunds", rows.Err())
}

func (r *RefundRepo) Update(ctx context.Context, rec *domain.RefundRecord) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE refunds SET
			status = $2, processed_by = $3, processed_at = $4, decision_note = $5, payout_reference = $6
		WHERE id = $1
	`, rec.ID, string(rec.Status), rec.ProcessedBy, rec.ProcessedAt, rec.DecisionNote, rec.PayoutReference)
	if err != nil {
		return mapError("update refund", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundError{Resource: "refund"}
	}
	return nil
}
