package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
	"github.com/samirrijal/skyhop/internal/pkg/metrics"
)

// RouteEntry is the cached per-vehicle view of the timetable.
type RouteEntry struct {
	Vehicle  domain.Vehicle           `json:"vehicle"`
	Segments []domain.ScheduleSegment `json:"segments"`
}

// Resolution is a segment together with its overlap set.
type Resolution struct {
	Vehicle domain.Vehicle
	Route   *domain.Route // nil when the vehicle's stop configuration is invalid
	Segment domain.ScheduleSegment
	Overlap []domain.ScheduleSegment
}

// Keys returns the capacity records of the overlap set on date, in lock order.
func (r *Resolution) Keys(date time.Time) []domain.LedgerKey {
	return domain.Keys(r.Overlap, date)
}

// Mode is the vehicle's capacity representation.
func (r *Resolution) Mode() domain.CapacityMode {
	return r.Vehicle.Mode()
}

// RouteResolver resolves overlap sets through a read-through cache keyed by
// vehicle ID.
type RouteResolver struct {
	timetable ports.TimetableRepository
	cache     ports.CacheService
	ttl       time.Duration
}

// NewRouteResolver creates a RouteResolver. cache may be nil.
func NewRouteResolver(timetable ports.TimetableRepository, cache ports.CacheService, ttl time.Duration) *RouteResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RouteResolver{timetable: timetable, cache: cache, ttl: ttl}
}

func routeCacheKey(vehicleID string) string {
	return "routes:vehicle:" + vehicleID
}

// Entry returns the cached route entry for a vehicle, loading it on a miss.
func (r *RouteResolver) Entry(ctx context.Context, vehicleID string) (*RouteEntry, error) {
	key := routeCacheKey(vehicleID)
	if r.cache != nil {
		if data, err := r.cache.Get(ctx, key); err == nil {
			var entry RouteEntry
			if err := json.Unmarshal(data, &entry); err == nil {
				metrics.CacheHits.WithLabelValues("route").Inc()
				return &entry, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
	}

	vehicle, err := r.timetable.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("get vehicle %s: %w", vehicleID, err)
	}
	segments, err := r.timetable.ListSegmentsByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list segments of %s: %w", vehicleID, err)
	}
	entry := &RouteEntry{Vehicle: *vehicle, Segments: segments}

	if r.cache != nil {
		if data, err := json.Marshal(entry); err == nil {
			_ = r.cache.Set(ctx, key, data, int(r.ttl.Seconds()))
		}
	}
	return entry, nil
}

// Resolve loads a segment and computes its overlap set.
func (r *RouteResolver) Resolve(ctx context.Context, segmentID string) (*Resolution, error) {
	if segmentID == "" {
		return nil, domain.ValidationError{Field: "segment_id", Msg: "is required"}
	}
	seg, err := r.timetable.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	entry, err := r.Entry(ctx, seg.VehicleID)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Vehicle: entry.Vehicle, Segment: *seg}
	route, err := domain.RouteForVehicle(&entry.Vehicle)
	if err != nil {
		logging.FromContext(ctx).Warn("invalid stop configuration, using segment alone",
			"vehicle_id", entry.Vehicle.ID, "error", err)
		res.Overlap = []domain.ScheduleSegment{*seg}
		return res, nil
	}
	res.Route = route
	res.Overlap = route.OverlapSet(*seg, entry.Segments)
	return res, nil
}

// InvalidateVehicle drops the cached entry after a configuration change.
func (r *RouteResolver) InvalidateVehicle(ctx context.Context, vehicleID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, routeCacheKey(vehicleID))
}

// HandleFleetUpdate is the subscriber callback for fleet change events.
func (r *RouteResolver) HandleFleetUpdate(ctx context.Context, u *domain.FleetUpdate) error {
	if u == nil || u.VehicleID == "" {
		return nil
	}
	logging.FromContext(ctx).Info("route cache invalidated", "vehicle_id", u.VehicleID, "kind", u.Kind)
	return r.InvalidateVehicle(ctx, u.VehicleID)
}

// checkTravel rejects inactive segments, non-operating weekdays and past dates.
func checkTravel(seg *domain.ScheduleSegment, date time.Time, now time.Time, loc *time.Location) error {
	if !seg.Active {
		return domain.ValidationError{Field: "segment_id", Msg: "segment is not on sale"}
	}
	if !seg.OperatesOn(date) {
		return domain.ValidationError{Field: "date", Msg: fmt.Sprintf("segment does not operate on %s", date.Weekday())}
	}
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return domain.ValidationError{Field: "date", Msg: "travel date is in the past"}
	}
	return nil
}
