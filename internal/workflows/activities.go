package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

// SettlementActivities holds the activity implementations for the
// settlement sweep.
type SettlementActivities struct {
	Holds   *usecases.HoldService
	Refunds *usecases.CancellationService
}

// PurgeExpiredHolds deletes holds whose expiry has passed.
func (a *SettlementActivities) PurgeExpiredHolds(ctx context.Context) (int64, error) {
	n, err := a.Holds.Sweep(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired holds: %w", err)
	}
	return n, nil
}

// ListApprovedRefunds returns the IDs of refunds waiting for payout.
func (a *SettlementActivities) ListApprovedRefunds(ctx context.Context, limit int) ([]string, error) {
	refunds, err := a.Refunds.ListApproved(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list approved refunds: %w", err)
	}
	ids := make([]string, len(refunds))
	for i, r := range refunds {
		ids[i] = r.ID
	}
	return ids, nil
}

// SettleRefund pays out one approved refund. A refund that is no longer
// approved (settled by an operator in the meantime, say) fails without retry.
func (a *SettlementActivities) SettleRefund(ctx context.Context, refundID string) (string, error) {
	r, err := a.Refunds.SettleRefund(ctx, refundID)
	if err != nil {
		if domain.IsPolicyState(err) || domain.IsNotFound(err) {
			return "", temporal.NewNonRetryableApplicationError(err.Error(), ErrRefundNotSettleable, err)
		}
		return "", err
	}
	activity.GetLogger(ctx).Info("refund paid out", "refund_id", r.ID, "payout", r.PayoutReference)
	return r.PayoutReference, nil
}
