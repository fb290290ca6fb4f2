package postgres

import (
	"context"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// RescheduleRepo implements ports.RescheduleRepository.
type RescheduleRepo struct {
	q querier
}

func (r *RescheduleRepo) Create(ctx context.Context, req *domain.RescheduleRequest) error {
	if _, err := r.q.Exec(ctx, `
		UPDATE reschedule_requests SET status = $2
		WHERE booking_id = $1 AND status = $3
	`, req.BookingID, string(domain.RescheduleSuperseded), string(domain.ReschedulePending)); err != nil {
		return mapError("supersede reschedule", err)
	}

	labels := req.NewSeatLabels
	if labels == nil {
		labels = []string{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO reschedule_requests
			(id, booking_id, new_segment_id, new_date, new_seat_labels, quote, payment_order_id, status, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, req.ID, req.BookingID, req.NewSegmentID, domain.NormalizeDate(req.NewDate), labels, req.Quote,
		req.PaymentOrderID, string(req.Status), req.RequestedBy, req.CreatedAt)
	return mapError("insert reschedule", err)
}

func (r *RescheduleRepo) LatestPending(ctx context.Context, bookingID string) (*domain.RescheduleRequest, error) {
	var req domain.RescheduleRequest
	err := r.q.QueryRow(ctx, `
		SELECT id, booking_id, new_segment_id, new_date, new_seat_labels, quote, payment_order_id,
		       status, requested_by, created_at, completed_at
		FROM reschedule_requests
		WHERE booking_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, bookingID, string(domain.ReschedulePending)).Scan(
		&req.ID, &req.BookingID, &req.NewSegmentID, &req.NewDate, &req.NewSeatLabels, &req.Quote, &req.PaymentOrderID,
		&req.Status, &req.RequestedBy, &req.CreatedAt, &req.CompletedAt,
	)
	if err != nil {
		return nil, notFound("reschedule request", err)
	}
	return &req, nil
}

func (r *RescheduleRepo) Update(ctx context.Context, req *domain.RescheduleRequest) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE reschedule_requests SET status = $2, completed_at = $3 WHERE id = $1
	`, req.ID, string(req.Status), req.CompletedAt)
	if err != nil {
		return mapError("update reschedule", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundError{Resource: "reschedule request"}
	}
	return nil
}
