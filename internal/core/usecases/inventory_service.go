package usecases

import (
	"context"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
)

// Availability is the advisory seat count of a segment on a date.
type Availability struct {
	SegmentID        string              `json:"segment_id"`
	Date             string              `json:"date"`
	AvailableSeats   int                 `json:"available_seats"`
	SeatLimit        int                 `json:"seat_limit"`
	BindingSegmentID string              `json:"binding_segment_id"`
	OverlapSize      int                 `json:"overlap_size"`
	CapacityMode     domain.CapacityMode `json:"capacity_mode"`
}

// Seat states reported by the seat map.
const (
	SeatAvailable = "available"
	SeatBooked    = "booked"
	SeatHeld      = "held"
)

// SeatState is one cell of the seat map.
type SeatState struct {
	Label  string `json:"label"`
	Status string `json:"status"`
	// HeldByYou marks a seat the requester holds; it is reported available.
	HeldByYou bool       `json:"held_by_you,omitempty"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
}

// SeatMap lists every named seat of a per-seat vehicle.
type SeatMap struct {
	SegmentID string      `json:"segment_id"`
	Date      string      `json:"date"`
	Seats     []SeatState `json:"seats"`
	Available int         `json:"available"`
}

// InventoryService answers availability questions. All reads are advisory;
// the binding check happens under lock at commit.
type InventoryService struct {
	tx       ports.TxManager
	resolver *RouteResolver
	settings Settings
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(tx ports.TxManager, resolver *RouteResolver, settings Settings) *InventoryService {
	return &InventoryService{tx: tx, resolver: resolver, settings: settings}
}

// Available returns seat_limit minus the heaviest booked record across the
// segment's overlap set, floored at zero.
func (s *InventoryService) Available(ctx context.Context, segmentID string, date time.Time) (*Availability, error) {
	res, err := s.resolver.Resolve(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	if err := checkTravel(&res.Segment, date, s.settings.now(), s.settings.location()); err != nil {
		return nil, err
	}

	out := &Availability{
		SegmentID:    segmentID,
		Date:         domain.FormatDate(date),
		SeatLimit:    res.Vehicle.SeatLimit,
		OverlapSize:  len(res.Overlap),
		CapacityMode: res.Mode(),
	}
	err = s.tx.Read(ctx, func(ctx context.Context, tx ports.Tx) error {
		ledger := tx.Ledger(res.Mode())
		keys := res.Keys(date)
		booked := make(map[string]int, len(keys))
		order := make([]string, len(keys))
		for i, k := range keys {
			n, err := ledger.Booked(ctx, k)
			if err != nil {
				return err
			}
			booked[k.SegmentID] = n
			order[i] = k.SegmentID
		}
		binding, heaviest := domain.Binding(booked, order)
		out.BindingSegmentID = binding
		out.AvailableSeats = domain.Remaining(res.Vehicle.SeatLimit, heaviest)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SeatMap enumerates S1..S{limit} with booked seats and seats held by others
// marked. Seats held by requesterID count as available to them.
func (s *InventoryService) SeatMap(ctx context.Context, segmentID string, date time.Time, requesterID string) (*SeatMap, error) {
	res, err := s.resolver.Resolve(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	if res.Mode() != domain.CapacityPerSeat {
		return nil, domain.ValidationError{Field: "segment_id", Msg: "vehicle does not assign named seats"}
	}
	if err := checkTravel(&res.Segment, date, s.settings.now(), s.settings.location()); err != nil {
		return nil, err
	}

	now := s.settings.now()
	out := &SeatMap{SegmentID: segmentID, Date: domain.FormatDate(date)}
	err = s.tx.Read(ctx, func(ctx context.Context, tx ports.Tx) error {
		keys := res.Keys(date)
		occupied, err := tx.Ledger(domain.CapacityPerSeat).Occupied(ctx, keys)
		if err != nil {
			return err
		}
		holds, err := tx.Holds().ListLive(ctx, keys, now)
		if err != nil {
			return err
		}
		heldBy := make(map[string]domain.SeatHold)
		for _, h := range holds {
			// another holder's claim wins over the requester's for display
			if prev, ok := heldBy[h.SeatLabel]; ok && prev.HolderID != requesterID {
				continue
			}
			heldBy[h.SeatLabel] = h
		}

		for _, label := range domain.SeatLabels(res.Vehicle.SeatLimit) {
			st := SeatState{Label: label, Status: SeatAvailable}
			switch h, held := heldBy[label]; {
			case occupied[label]:
				st.Status = SeatBooked
			case held && h.HolderID != requesterID:
				st.Status = SeatHeld
				until := h.ExpiresAt
				st.HeldUntil = &until
			case held:
				st.HeldByYou = true
			}
			if st.Status == SeatAvailable {
				out.Available++
			}
			out.Seats = append(out.Seats, st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListAvailable returns the labels the requester could hold or book now.
func (s *InventoryService) ListAvailable(ctx context.Context, segmentID string, date time.Time, requesterID string) ([]string, error) {
	sm, err := s.SeatMap(ctx, segmentID, date, requesterID)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, sm.Available)
	for _, st := range sm.Seats {
		if st.Status == SeatAvailable {
			labels = append(labels, st.Label)
		}
	}
	return labels, nil
}
