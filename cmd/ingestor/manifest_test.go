package main

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

const sample = `{
  "source": "ops-2026-winter",
  "vehicles": [
    {
      "id": "v-9n-aka", "code": "9N-AKA", "kind": "aircraft",
      "start_point": "KTM", "end_point": "PKR", "intermediate_stops": ["BWA"],
      "seat_limit": 19,
      "segments": [
        {"id": "ktm-bwa", "from": "KTM", "to": "BWA", "departure": "07:30", "arrival": "08:05", "price": 4500, "days": ["mon", "thu"]},
        {"id": "ktm-pkr", "from": "KTM", "to": "PKR", "departure": "07:30", "arrival": "08:40", "price": 6200}
      ]
    },
    {
      "id": "v-heli", "code": "9N-HLI", "kind": "rotorcraft",
      "start_point": "KTM", "end_point": "LUA", "seat_limit": 5,
      "segments": [{"id": "ktm-lua", "from": "KTM", "to": "LUA", "departure": "06:00", "arrival": "06:45", "price": 30000, "inactive": true}]
    }
  ]
}`

func TestManifest_Build(t *testing.T) {
	m, err := ParseManifest([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, segs, err := m.Vehicles[0].Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if v.Mode() != domain.CapacityAggregate || len(segs) != 2 {
		t.Fatalf("unexpected vehicle %+v with %d segments", v, len(segs))
	}
	if segs[0].DepartureMinute != 7*60+30 || segs[0].ArrivalMinute != 8*60+5 {
		t.Fatalf("unexpected times: %+v", segs[0])
	}
	if len(segs[0].OperatingDays) != 2 || segs[0].OperatingDays[1] != time.Thursday {
		t.Fatalf("unexpected days: %v", segs[0].OperatingDays)
	}
	if !segs[1].Active || len(segs[1].OperatingDays) != 0 {
		t.Fatalf("expected daily active segment, got %+v", segs[1])
	}

	heli, hsegs, err := m.Vehicles[1].Build()
	if err != nil {
		t.Fatalf("build heli: %v", err)
	}
	if heli.Mode() != domain.CapacityPerSeat || hsegs[0].Active {
		t.Fatalf("unexpected heli: %+v %+v", heli, hsegs[0])
	}
}

func TestManifest_Rejects(t *testing.T) {
	base := VehicleEntry{
		ID: "v1", Kind: domain.VehicleAircraft, StartPoint: "A", EndPoint: "C",
		IntermediateStops: []string{"B"}, SeatLimit: 10,
	}
	tests := []struct {
		name    string
		mutate  func(*VehicleEntry)
		wantErr string
	}{
		{"backwards leg", func(v *VehicleEntry) {
			v.Segments = []SegmentEntry{{ID: "s", From: "C", To: "A", Departure: "07:00", Arrival: "08:00"}}
		}, "not a forward leg"},
		{"bad clock", func(v *VehicleEntry) {
			v.Segments = []SegmentEntry{{ID: "s", From: "A", To: "B", Departure: "7am", Arrival: "08:00"}}
		}, "HH:MM"},
		{"bad weekday", func(v *VehicleEntry) {
			v.Segments = []SegmentEntry{{ID: "s", From: "A", To: "B", Departure: "07:00", Arrival: "08:00", Days: []string{"funday"}}}
		}, "weekday"},
		{"zero seats", func(v *VehicleEntry) { v.SeatLimit = 0 }, "seat_limit"},
		{"unknown kind", func(v *VehicleEntry) { v.Kind = "balloon" }, "unknown kind"},
		{"repeated stop", func(v *VehicleEntry) { v.IntermediateStops = []string{"A"} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base
			tt.mutate(&v)
			_, _, err := v.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in %v", tt.wantErr, err)
			}
		})
	}
}

func TestManifest_DuplicateVehicle(t *testing.T) {
	_, err := ParseManifest([]byte(`{"vehicles":[{"id":"a"},{"id":"a"}]}`))
	if err == nil || !strings.Contains(err.Error(), "twice") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestManifest_Only(t *testing.T) {
	m, _ := ParseManifest([]byte(sample))
	only := m.Only([]string{" v-heli "})
	if len(only.Vehicles) != 1 || only.Vehicles[0].ID != "v-heli" {
		t.Fatalf("unexpected filter result: %+v", only.Vehicles)
	}
}
