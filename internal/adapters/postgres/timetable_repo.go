package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// TimetableRepo implements ports.TimetableRepository and the ingestor's
// bulk upserts.
type TimetableRepo struct {
	db *DB
}

func NewTimetableRepo(db *DB) *TimetableRepo {
	return &TimetableRepo{db: db}
}

func (r *TimetableRepo) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	var (
		v    domain.Vehicle
		mode *string
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, code, kind, start_point, end_point, intermediate_stops, seat_limit, capacity_mode, updated_at
		FROM vehicles WHERE id = $1
	`, id).Scan(&v.ID, &v.Code, &v.Kind, &v.StartPoint, &v.EndPoint, &v.IntermediateStops, &v.SeatLimit, &mode, &v.UpdatedAt)
	if err != nil {
		return nil, notFound("vehicle", err)
	}
	if mode != nil {
		v.CapacityMode = domain.CapacityMode(*mode)
	}
	return &v, nil
}

const segmentColumns = `id, vehicle_id, departure_point, arrival_point, departure_minute, arrival_minute, price, operating_days, active`

func scanSegment(row pgx.Row) (*domain.ScheduleSegment, error) {
	var (
		s    domain.ScheduleSegment
		days []int16
	)
	if err := row.Scan(&s.ID, &s.VehicleID, &s.DeparturePoint, &s.ArrivalPoint,
		&s.DepartureMinute, &s.ArrivalMinute, &s.Price, &days, &s.Active); err != nil {
		return nil, err
	}
	for _, d := range days {
		s.OperatingDays = append(s.OperatingDays, time.Weekday(d))
	}
	return &s, nil
}

func (r *TimetableRepo) GetSegment(ctx context.Context, id string) (*domain.ScheduleSegment, error) {
	s, err := scanSegment(r.db.Pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM schedule_segments WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("segment", err)
	}
	return s, nil
}

func (r *TimetableRepo) ListSegmentsByVehicle(ctx context.Context, vehicleID string) ([]domain.ScheduleSegment, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+segmentColumns+` FROM schedule_segments WHERE vehicle_id = $1 ORDER BY id
	`, vehicleID)
	if err != nil {
		return nil, mapError("list segments", err)
	}
	defer rows.Close()

	var out []domain.ScheduleSegment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, mapError("list segments", rows.Err())
}

// UpsertTimetable writes vehicles and their segments in one transaction.
func (r *TimetableRepo) UpsertTimetable(ctx context.Context, vehicles []domain.Vehicle, segments []domain.ScheduleSegment) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return mapError("begin", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	batch := &pgx.Batch{}
	for _, v := range vehicles {
		var mode *string
		if v.CapacityMode.Valid() {
			m := string(v.CapacityMode)
			mode = &m
		}
		stops := v.IntermediateStops
		if stops == nil {
			stops = []string{}
		}
		batch.Queue(`
			INSERT INTO vehicles (id, code, kind, start_point, end_point, intermediate_stops, seat_limit, capacity_mode, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (id) DO UPDATE SET
				code = EXCLUDED.code, kind = EXCLUDED.kind,
				start_point = EXCLUDED.start_point, end_point = EXCLUDED.end_point,
				intermediate_stops = EXCLUDED.intermediate_stops, seat_limit = EXCLUDED.seat_limit,
				capacity_mode = EXCLUDED.capacity_mode, updated_at = now()
		`, v.ID, v.Code, string(v.Kind), v.StartPoint, v.EndPoint, stops, v.SeatLimit, mode)
	}
	for _, s := range segments {
		days := make([]int16, 0, len(s.OperatingDays))
		for _, d := range s.OperatingDays {
			days = append(days, int16(d))
		}
		batch.Queue(`
			INSERT INTO schedule_segments (`+segmentColumns+`, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (id) DO UPDATE SET
				vehicle_id = EXCLUDED.vehicle_id,
				departure_point = EXCLUDED.departure_point, arrival_point = EXCLUDED.arrival_point,
				departure_minute = EXCLUDED.departure_minute, arrival_minute = EXCLUDED.arrival_minute,
				price = EXCLUDED.price, operating_days = EXCLUDED.operating_days,
				active = EXCLUDED.active, updated_at = now()
		`, s.ID, s.VehicleID, s.DeparturePoint, s.ArrivalPoint, s.DepartureMinute, s.ArrivalMinute, s.Price, days, s.Active)
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return mapError("upsert timetable", err)
	}
	return mapError("commit timetable", tx.Commit(ctx))
}
