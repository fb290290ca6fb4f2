package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// AggregateLedger keeps one booked counter per capacity record.
type AggregateLedger struct {
	q querier
}

func (l *AggregateLedger) Mode() domain.CapacityMode { return domain.CapacityAggregate }

func (l *AggregateLedger) Booked(ctx context.Context, key domain.LedgerKey) (int, error) {
	var n int
	err := l.q.QueryRow(ctx, `
		SELECT booked FROM capacity_records WHERE segment_id = $1 AND travel_date = $2
	`, key.SegmentID, domain.NormalizeDate(key.Date)).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, mapError("read capacity", err)
}

func (l *AggregateLedger) Occupied(ctx context.Context, keys []domain.LedgerKey) (map[string]bool, error) {
	return nil, nil
}

func (l *AggregateLedger) Debit(ctx context.Context, key domain.LedgerKey, claim ports.Claim) error {
	tag, err := l.q.Exec(ctx, `
		UPDATE capacity_records SET booked = booked + $3, updated_at = now()
		WHERE segment_id = $1 AND travel_date = $2
	`, key.SegmentID, domain.NormalizeDate(key.Date), claim.Quantity)
	if err != nil {
		return mapError("debit capacity", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("debit %s: capacity record missing", key)
	}
	return insertEntry(ctx, l.q, domain.LedgerEntry{
		BookingID: claim.BookingID,
		SegmentID: key.SegmentID,
		Date:      key.Date,
		Mode:      domain.CapacityAggregate,
		Quantity:  claim.Quantity,
	})
}

func (l *AggregateLedger) Credit(ctx context.Context, entry domain.LedgerEntry) error {
	if _, err := l.q.Exec(ctx, `
		UPDATE capacity_records SET booked = GREATEST(booked - $3, 0), updated_at = now()
		WHERE segment_id = $1 AND travel_date = $2
	`, entry.SegmentID, domain.NormalizeDate(entry.Date), entry.Quantity); err != nil {
		return mapError("credit capacity", err)
	}
	return deleteEntry(ctx, l.q, entry)
}

// PerSeatLedger keeps one assignment row per occupied seat label.
type PerSeatLedger struct {
	q querier
}

func (l *PerSeatLedger) Mode() domain.CapacityMode { return domain.CapacityPerSeat }

func (l *PerSeatLedger) Booked(ctx context.Context, key domain.LedgerKey) (int, error) {
	var n int
	err := l.q.QueryRow(ctx, `
		SELECT count(*) FROM seat_assignments WHERE segment_id = $1 AND travel_date = $2
	`, key.SegmentID, domain.NormalizeDate(key.Date)).Scan(&n)
	return n, mapError("count seats", err)
}

func (l *PerSeatLedger) Occupied(ctx context.Context, keys []domain.LedgerKey) (map[string]bool, error) {
	segs, dates := splitKeys(keys)
	rows, err := l.q.Query(ctx, `
		SELECT DISTINCT seat_label FROM seat_assignments
		WHERE (segment_id, travel_date) IN (SELECT * FROM unnest($1::text[], $2::date[]))
	`, segs, dates)
	if err != nil {
		return nil, mapError("occupied seats", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		out[label] = true
	}
	return out, mapError("occupied seats", rows.Err())
}

func (l *PerSeatLedger) Debit(ctx context.Context, key domain.LedgerKey, claim ports.Claim) error {
	batch := &pgx.Batch{}
	for _, label := range claim.SeatLabels {
		batch.Queue(`
			INSERT INTO seat_assignments (segment_id, travel_date, seat_label, booking_id)
			VALUES ($1, $2, $3, $4)
		`, key.SegmentID, domain.NormalizeDate(key.Date), label, claim.BookingID)
	}
	if err := sendBatch(ctx, l.q, batch); err != nil {
		return mapError("assign seats", err)
	}
	return insertEntry(ctx, l.q, domain.LedgerEntry{
		BookingID:  claim.BookingID,
		SegmentID:  key.SegmentID,
		Date:       key.Date,
		Mode:       domain.CapacityPerSeat,
		Quantity:   len(claim.SeatLabels),
		SeatLabels: claim.SeatLabels,
	})
}

func (l *PerSeatLedger) Credit(ctx context.Context, entry domain.LedgerEntry) error {
	if _, err := l.q.Exec(ctx, `
		DELETE FROM seat_assignments
		WHERE segment_id = $1 AND travel_date = $2 AND booking_id = $3 AND seat_label = ANY($4)
	`, entry.SegmentID, domain.NormalizeDate(entry.Date), entry.BookingID, entry.SeatLabels); err != nil {
		return mapError("release seats", err)
	}
	return deleteEntry(ctx, l.q, entry)
}

func insertEntry(ctx context.Context, q querier, e domain.LedgerEntry) error {
	labels := e.SeatLabels
	if labels == nil {
		labels = []string{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO booking_ledger_entries (booking_id, segment_id, travel_date, mode, quantity, seat_labels)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.BookingID, e.SegmentID, domain.NormalizeDate(e.Date), string(e.Mode), e.Quantity, labels)
	return mapError("write ledger entry", err)
}

func deleteEntry(ctx context.Context, q querier, e domain.LedgerEntry) error {
	_, err := q.Exec(ctx, `
		DELETE FROM booking_ledger_entries WHERE booking_id = $1 AND segment_id = $2 AND travel_date = $3
	`, e.BookingID, e.SegmentID, domain.NormalizeDate(e.Date))
	return mapError("delete ledger entry", err)
}

func sendBatch(ctx context.Context, q querier, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := q.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}
