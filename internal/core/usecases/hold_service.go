package usecases

import (
	"context"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
	"github.com/samirrijal/skyhop/internal/pkg/metrics"
)

// HoldRequest asks for named seats on a segment and date.
type HoldRequest struct {
	SegmentID  string
	Date       time.Time
	SeatLabels []string
	HolderID   string
}

// HoldResult confirms a placed hold.
type HoldResult struct {
	SegmentID  string    `json:"segment_id"`
	Date       string    `json:"date"`
	SeatLabels []string  `json:"seat_labels"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// HoldService manages provisional seat holds on per-seat vehicles.
type HoldService struct {
	tx       ports.TxManager
	resolver *RouteResolver
	settings Settings
}

// NewHoldService creates a new HoldService.
func NewHoldService(tx ports.TxManager, resolver *RouteResolver, settings Settings) *HoldService {
	return &HoldService{tx: tx, resolver: resolver, settings: settings}
}

// Hold validates every label against the overlap set and holds it on every
// record of the set until now + HoldTTL. Check and insert share one
// transaction.
func (s *HoldService) Hold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	if req.HolderID == "" {
		return nil, domain.ValidationError{Field: "holder_id", Msg: "is required"}
	}
	res, err := s.resolver.Resolve(ctx, req.SegmentID)
	if err != nil {
		return nil, err
	}
	if res.Mode() != domain.CapacityPerSeat {
		return nil, domain.ValidationError{Field: "segment_id", Msg: "seat holds require a per-seat vehicle"}
	}
	if err := domain.ValidateSeatLabels(req.SeatLabels, res.Vehicle.SeatLimit); err != nil {
		return nil, err
	}
	now := s.settings.now()
	if err := checkTravel(&res.Segment, req.Date, now, s.settings.location()); err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.settings.HoldTTL)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		keys := res.Keys(req.Date)
		if err := tx.LockCapacity(ctx, keys); err != nil {
			return err
		}
		ledger := tx.Ledger(domain.CapacityPerSeat)
		if err := checkSeatsFree(ctx, tx, ledger, keys, req.SeatLabels, req.HolderID, now); err != nil {
			return err
		}

		holds := make([]domain.SeatHold, 0, len(keys)*len(req.SeatLabels))
		for _, k := range keys {
			for _, l := range req.SeatLabels {
				holds = append(holds, domain.SeatHold{
					SegmentID: k.SegmentID,
					Date:      k.Date,
					SeatLabel: l,
					HolderID:  req.HolderID,
					ExpiresAt: expiresAt,
					CreatedAt: now,
				})
			}
		}
		return tx.Holds().Place(ctx, holds, now)
	})
	if err != nil {
		if domain.IsConflict(err) {
			metrics.HoldConflicts.Inc()
		}
		return nil, err
	}

	metrics.HoldsPlaced.Inc()
	logging.FromContext(ctx).Info("seats held",
		"segment_id", req.SegmentID, "date", domain.FormatDate(req.Date),
		"seats", req.SeatLabels, "expires_at", expiresAt)

	return &HoldResult{
		SegmentID:  req.SegmentID,
		Date:       domain.FormatDate(req.Date),
		SeatLabels: req.SeatLabels,
		ExpiresAt:  expiresAt,
	}, nil
}

// Release drops the holder's holds on the given labels.
func (s *HoldService) Release(ctx context.Context, req HoldRequest) error {
	if req.HolderID == "" {
		return domain.ValidationError{Field: "holder_id", Msg: "is required"}
	}
	res, err := s.resolver.Resolve(ctx, req.SegmentID)
	if err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Holds().Release(ctx, res.Keys(req.Date), req.HolderID, req.SeatLabels)
	})
}

// Sweep deletes expired holds. Expired holds never obstruct anyone, so this
// only reclaims storage.
func (s *HoldService) Sweep(ctx context.Context) (int64, error) {
	var n int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		n, err = tx.Holds().PurgeExpired(ctx, s.settings.now())
		return err
	})
	return n, err
}
