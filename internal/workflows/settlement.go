package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ErrRefundNotSettleable is the application error type of a refund that left
// the APPROVED state before the sweep reached it.
const ErrRefundNotSettleable = "RefundNotSettleable"

// SweepInput is the input for the settlement sweep.
type SweepInput struct {
	BatchSize int
}

// SweepResult summarises one sweep run.
type SweepResult struct {
	HoldsPurged int64
	Settled     []string
	Skipped     []string
	Failed      []string
}

// SettlementSweepWorkflow reclaims expired holds, then pays out every approved
// refund in the batch. One refund failing does not stop the rest; it stays
// APPROVED and is picked up by the next run.
func SettlementSweepWorkflow(ctx workflow.Context, input SweepInput) (SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	var result SweepResult

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrRefundNotSettleable},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: expired holds. Failure here is not worth aborting payouts for.
	if err := workflow.ExecuteActivity(ctx, "PurgeExpiredHolds").Get(ctx, &result.HoldsPurged); err != nil {
		logger.Warn("hold purge failed", "error", err)
	}

	// Step 2: approved refunds
	var ids []string
	if err := workflow.ExecuteActivity(ctx, "ListApprovedRefunds", input.BatchSize).Get(ctx, &ids); err != nil {
		return result, err
	}

	// Step 3: payouts, one at a time so the gateway sees a steady rate
	for _, id := range ids {
		var payout string
		err := workflow.ExecuteActivity(ctx, "SettleRefund", id).Get(ctx, &payout)
		var appErr *temporal.ApplicationError
		switch {
		case err == nil:
			result.Settled = append(result.Settled, id)
		case errors.As(err, &appErr) && appErr.Type() == ErrRefundNotSettleable:
			result.Skipped = append(result.Skipped, id)
		default:
			logger.Warn("refund payout failed", "refund_id", id, "error", err)
			result.Failed = append(result.Failed, id)
		}
	}

	logger.Info("settlement sweep finished",
		"holds_purged", result.HoldsPurged,
		"settled", len(result.Settled),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed))
	return result, nil
}
