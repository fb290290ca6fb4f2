package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/ports"
)

// TxManager implements ports.TxManager on a pgx pool.
type TxManager struct {
	db *DB
}

func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx runs fn in a read-committed transaction. Row locks taken through
// Tx.LockCapacity serialize writers on the same capacity records.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return m.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, true, fn)
}

// Read runs fn in a read-only transaction that is always rolled back.
func (m *TxManager) Read(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return m.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}, false, fn)
}

func (m *TxManager) run(ctx context.Context, opts pgx.TxOptions, commit bool, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx, err := m.db.Pool.BeginTx(ctx, opts)
	if err != nil {
		return mapError("begin", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapError("transaction", err)
	}
	if !commit {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("commit", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

// LockCapacity upserts the anchor rows and locks them in key order.
func (t *pgTx) LockCapacity(ctx context.Context, keys []domain.LedgerKey) error {
	if len(keys) == 0 {
		return nil
	}
	segs, dates := splitKeys(keys)

	if _, err := t.tx.Exec(ctx, `
		INSERT INTO capacity_records (segment_id, travel_date)
		SELECT * FROM unnest($1::text[], $2::date[])
		ON CONFLICT (segment_id, travel_date) DO NOTHING
	`, segs, dates); err != nil {
		return mapError("anchor capacity", err)
	}

	rows, err := t.tx.Query(ctx, `
		SELECT segment_id FROM capacity_records
		WHERE (segment_id, travel_date) IN (SELECT * FROM unnest($1::text[], $2::date[]))
		ORDER BY segment_id, travel_date
		FOR UPDATE
	`, segs, dates)
	if err != nil {
		return mapError("lock capacity", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return mapError("lock capacity", err)
	}
	if n != len(keys) {
		return fmt.Errorf("lock capacity: locked %d of %d records", n, len(keys))
	}
	return nil
}

func (t *pgTx) Ledger(mode domain.CapacityMode) ports.CapacityLedger {
	if mode == domain.CapacityPerSeat {
		return &PerSeatLedger{q: t.tx}
	}
	return &AggregateLedger{q: t.tx}
}

func (t *pgTx) Holds() ports.HoldRepository             { return &HoldRepo{q: t.tx} }
func (t *pgTx) Bookings() ports.BookingRepository       { return &BookingRepo{q: t.tx} }
func (t *pgTx) Refunds() ports.RefundRepository         { return &RefundRepo{q: t.tx} }
func (t *pgTx) Reschedules() ports.RescheduleRepository { return &RescheduleRepo{q: t.tx} }
func (t *pgTx) Outbox() ports.OutboxRepository          { return &OutboxRepo{q: t.tx} }

func splitKeys(keys []domain.LedgerKey) ([]string, []time.Time) {
	segs := make([]string, len(keys))
	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		segs[i] = k.SegmentID
		dates[i] = domain.NormalizeDate(k.Date)
	}
	return segs, dates
}
