package domain

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the wire format of a travel date.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD travel date into a UTC midnight value.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ValidationError{Field: "date", Msg: "is required"}
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ValidationError{Field: "date", Msg: "must be YYYY-MM-DD", Err: err}
	}
	return d, nil
}

// FormatDate renders a travel date in wire format.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// NormalizeDate truncates a timestamp to its UTC calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Route is a vehicle's ordered stop sequence.
type Route struct {
	Stops []string `json:"stops"`
	index map[string]int
}

// NewRoute builds the stop sequence origin, intermediates..., destination.
// Duplicate stops are rejected.
func NewRoute(start, end string, intermediate []string) (*Route, error) {
	if start == "" || end == "" {
		return nil, ValidationError{Field: "route", Msg: "start and end points are required"}
	}
	stops := make([]string, 0, len(intermediate)+2)
	stops = append(stops, start)
	stops = append(stops, intermediate...)
	stops = append(stops, end)

	idx := make(map[string]int, len(stops))
	for i, s := range stops {
		if s == "" {
			return nil, ValidationError{Field: "route", Msg: fmt.Sprintf("empty stop at position %d", i)}
		}
		if _, dup := idx[s]; dup {
			return nil, ValidationError{Field: "route", Msg: fmt.Sprintf("duplicate stop %q", s)}
		}
		idx[s] = i
	}
	return &Route{Stops: stops, index: idx}, nil
}

// RouteForVehicle derives the route from a vehicle's static configuration.
func RouteForVehicle(v *Vehicle) (*Route, error) {
	return NewRoute(v.StartPoint, v.EndPoint, v.IntermediateStops)
}

// Index returns the position of a stop on the route.
func (r *Route) Index(stop string) (int, bool) {
	if r.index == nil {
		r.index = make(map[string]int, len(r.Stops))
		for i, s := range r.Stops {
			r.index[s] = i
		}
	}
	i, ok := r.index[stop]
	return i, ok
}

// Span locates a leg's departure and arrival indices. ok is false when
// either point is off-route or the leg does not run forward.
func (r *Route) Span(departure, arrival string) (d, a int, ok bool) {
	d, okD := r.Index(departure)
	a, okA := r.Index(arrival)
	if !okD || !okA || d >= a {
		return 0, 0, false
	}
	return d, a, true
}

// HasIntermediateStops reports whether any stop lies between origin and
// destination.
func (r *Route) HasIntermediateStops() bool {
	return len(r.Stops) > 2
}

// OverlapSet returns every segment on the route that physically contains the
// target's travel range, including the target itself, ordered by ascending
// segment ID.
//
// A segment whose own span cannot be placed on the route contributes nothing
// and, when it is the target, resolves to itself alone.
func (r *Route) OverlapSet(target ScheduleSegment, candidates []ScheduleSegment) []ScheduleSegment {
	d, a, ok := r.Span(target.DeparturePoint, target.ArrivalPoint)
	if !ok || !r.HasIntermediateStops() {
		return []ScheduleSegment{target}
	}

	out := []ScheduleSegment{target}
	for _, c := range candidates {
		if c.ID == target.ID || c.VehicleID != target.VehicleID {
			continue
		}
		cd, ca, ok := r.Span(c.DeparturePoint, c.ArrivalPoint)
		if !ok {
			continue
		}
		if cd <= d && ca >= a {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Keys maps an overlap set to its capacity records on date, ascending by
// segment ID.
func Keys(segments []ScheduleSegment, date time.Time) []LedgerKey {
	keys := make([]LedgerKey, len(segments))
	for i, s := range segments {
		keys[i] = LedgerKey{SegmentID: s.ID, Date: date}
	}
	SortKeys(keys)
	return keys
}

// SortKeys orders keys by segment ID then date, the lock acquisition order.
func SortKeys(keys []LedgerKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SegmentID != keys[j].SegmentID {
			return keys[i].SegmentID < keys[j].SegmentID
		}
		return keys[i].Date.Before(keys[j].Date)
	})
}

// MergeKeys returns the sorted, de-duplicated union of key sets.
func MergeKeys(sets ...[]LedgerKey) []LedgerKey {
	seen := make(map[string]bool)
	var out []LedgerKey
	for _, set := range sets {
		for _, k := range set {
			if seen[k.String()] {
				continue
			}
			seen[k.String()] = true
			out = append(out, k)
		}
	}
	SortKeys(out)
	return out
}
