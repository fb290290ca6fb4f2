package usecases

import (
	"context"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
	"github.com/samirrijal/skyhop/internal/pkg/metrics"
)

// OutboxRelay moves committed events from the outbox to the broker.
type OutboxRelay struct {
	tx        ports.TxManager
	publisher ports.EventPublisher
	batchSize int
	now       func() time.Time
}

// NewOutboxRelay creates a new OutboxRelay.
func NewOutboxRelay(tx ports.TxManager, publisher ports.EventPublisher, batchSize int) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{tx: tx, publisher: publisher, batchSize: batchSize, now: time.Now}
}

// Flush publishes one batch of pending events and returns how many were
// published. Claimed rows stay locked until the batch transaction ends, so
// concurrent relays never publish the same event.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	published := 0
	err := r.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		events, err := tx.Outbox().ClaimPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if err := r.publish(ctx, ev); err != nil {
				metrics.OutboxFailed.Inc()
				logging.FromContext(ctx).Warn("outbox publish failed",
					"event_id", ev.ID, "subject", ev.Subject, "retry", ev.RetryCount+1, "error", err)
				if err := tx.Outbox().MarkFailed(ctx, ev.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := tx.Outbox().MarkPublished(ctx, ev.ID, r.now()); err != nil {
				return err
			}
			metrics.OutboxPublished.Inc()
			published++
		}
		return nil
	})
	return published, err
}

// eventPublisher is satisfied by brokers that deduplicate on event ID.
type eventPublisher interface {
	PublishEvent(ctx context.Context, ev domain.OutboxEvent) error
}

func (r *OutboxRelay) publish(ctx context.Context, ev domain.OutboxEvent) error {
	if p, ok := r.publisher.(eventPublisher); ok {
		return p.PublishEvent(ctx, ev)
	}
	return r.publisher.Publish(ctx, ev.Subject, ev.Payload)
}

// Run flushes every interval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					logging.FromContext(ctx).Error("outbox flush failed", "error", err)
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// Cleanup deletes events published before the cutoff.
func (r *OutboxRelay) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		n, err = tx.Outbox().DeletePublished(ctx, before)
		return err
	})
	return n, err
}
