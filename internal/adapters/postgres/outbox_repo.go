package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// OutboxRepo implements ports.OutboxRepository.
type OutboxRepo struct {
	q querier
}

func (r *OutboxRepo) Append(ctx context.Context, events ...domain.OutboxEvent) error {
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, subject, payload, status, retry_count, max_retries, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, ev.ID, ev.AggregateType, ev.AggregateID, ev.EventType, ev.Subject, string(ev.Payload),
			string(ev.Status), ev.RetryCount, ev.MaxRetries, ev.CreatedAt)
	}
	return mapError("append outbox", sendBatch(ctx, r.q, batch))
}

func (r *OutboxRepo) ClaimPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, subject, payload::text,
		       status, retry_count, max_retries, last_error, created_at, published_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, mapError("claim outbox", err)
	}
	defer rows.Close()

	var out []domain.OutboxEvent
	for rows.Next() {
		var (
			ev      domain.OutboxEvent
			payload string
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &ev.Subject, &payload,
			&ev.Status, &ev.RetryCount, &ev.MaxRetries, &ev.LastError, &ev.CreatedAt, &ev.PublishedAt); err != nil {
			return nil, err
		}
		ev.Payload = []byte(payload)
		out = append(out, ev)
	}
	return out, mapError("claim outbox", rows.Err())
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := r.q.Exec(ctx, `UPDATE outbox SET status = 'published', published_at = $2 WHERE id = $1`, id, at)
	return mapError("mark published", err)
}

// MarkFailed counts an attempt; the event is parked as failed once it runs
// out of retries.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE outbox SET
			retry_count = retry_count + 1,
			last_error = $2,
			status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END
		WHERE id = $1
	`, id, reason)
	return mapError("mark failed", err)
}

func (r *OutboxRepo) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM outbox WHERE status = 'published' AND published_at < $1`, before)
	if err != nil {
		return 0, mapError("delete outbox", err)
	}
	return tag.RowsAffected(), nil
}
