package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// Manifest is the timetable import file.
type Manifest struct {
	Source   string         `json:"source"`
	Vehicles []VehicleEntry `json:"vehicles"`
}

type VehicleEntry struct {
	ID                string              `json:"id"`
	Code              string              `json:"code"`
	Kind              domain.VehicleKind  `json:"kind"`
	StartPoint        string              `json:"start_point"`
	EndPoint          string              `json:"end_point"`
	IntermediateStops []string            `json:"intermediate_stops,omitempty"`
	SeatLimit         int                 `json:"seat_limit"`
	CapacityMode      domain.CapacityMode `json:"capacity_mode,omitempty"`
	Segments          []SegmentEntry      `json:"segments"`
}

type SegmentEntry struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Departure string   `json:"departure"` // HH:MM local
	Arrival   string   `json:"arrival"`
	Price     int64    `json:"price"`
	Days      []string `json:"days,omitempty"` // mon..sun; empty = daily
	Inactive  bool     `json:"inactive,omitempty"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Vehicles) == 0 {
		return nil, fmt.Errorf("manifest lists no vehicles")
	}
	seen := make(map[string]bool)
	for _, v := range m.Vehicles {
		if v.ID == "" {
			return nil, fmt.Errorf("vehicle without id")
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("vehicle %s listed twice", v.ID)
		}
		seen[v.ID] = true
	}
	return &m, nil
}

// Only keeps the listed vehicle IDs.
func (m *Manifest) Only(ids []string) *Manifest {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[strings.TrimSpace(id)] = true
	}
	out := &Manifest{Source: m.Source}
	for _, v := range m.Vehicles {
		if keep[v.ID] {
			out.Vehicles = append(out.Vehicles, v)
		}
	}
	return out
}

// Build validates the entry against its route and converts it to domain
// records.
func (v VehicleEntry) Build() (domain.Vehicle, []domain.ScheduleSegment, error) {
	vehicle := domain.Vehicle{
		ID:                v.ID,
		Code:              v.Code,
		Kind:              v.Kind,
		StartPoint:        v.StartPoint,
		EndPoint:          v.EndPoint,
		IntermediateStops: v.IntermediateStops,
		SeatLimit:         v.SeatLimit,
		CapacityMode:      v.CapacityMode,
	}
	if v.Kind != domain.VehicleAircraft && v.Kind != domain.VehicleRotorcraft {
		return vehicle, nil, fmt.Errorf("vehicle %s: unknown kind %q", v.ID, v.Kind)
	}
	if v.SeatLimit <= 0 {
		return vehicle, nil, fmt.Errorf("vehicle %s: seat_limit must be positive", v.ID)
	}
	if v.CapacityMode != "" && !v.CapacityMode.Valid() {
		return vehicle, nil, fmt.Errorf("vehicle %s: unknown capacity_mode %q", v.ID, v.CapacityMode)
	}
	route, err := domain.RouteForVehicle(&vehicle)
	if err != nil {
		return vehicle, nil, fmt.Errorf("vehicle %s: %w", v.ID, err)
	}

	segments := make([]domain.ScheduleSegment, 0, len(v.Segments))
	for _, s := range v.Segments {
		if _, _, ok := route.Span(s.From, s.To); !ok {
			return vehicle, nil, fmt.Errorf("segment %s: %s-%s is not a forward leg of %s", s.ID, s.From, s.To, v.ID)
		}
		dep, err := parseClock(s.Departure)
		if err != nil {
			return vehicle, nil, fmt.Errorf("segment %s departure: %w", s.ID, err)
		}
		arr, err := parseClock(s.Arrival)
		if err != nil {
			return vehicle, nil, fmt.Errorf("segment %s arrival: %w", s.ID, err)
		}
		days, err := parseDays(s.Days)
		if err != nil {
			return vehicle, nil, fmt.Errorf("segment %s: %w", s.ID, err)
		}
		if s.Price < 0 {
			return vehicle, nil, fmt.Errorf("segment %s: negative price", s.ID)
		}
		segments = append(segments, domain.ScheduleSegment{
			ID:              s.ID,
			VehicleID:       v.ID,
			DeparturePoint:  s.From,
			ArrivalPoint:    s.To,
			DepartureMinute: dep,
			ArrivalMinute:   arr,
			Price:           s.Price,
			OperatingDays:   days,
			Active:          !s.Inactive,
		})
	}
	return vehicle, segments, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseDays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		d, ok := weekdays[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		out = append(out, d)
	}
	return out, nil
}
