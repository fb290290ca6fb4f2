package postgres

import (
	"context"
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// HoldRepo implements ports.HoldRepository. Expiry is evaluated in the
// queries; expired rows are only removed by PurgeExpired.
type HoldRepo struct {
	q querier
}

func (r *HoldRepo) Place(ctx context.Context, holds []domain.SeatHold, now time.Time) error {
	if len(holds) == 0 {
		return nil
	}
	segs := make([]string, len(holds))
	dates := make([]time.Time, len(holds))
	labels := make([]string, len(holds))
	holders := make([]string, len(holds))
	expiries := make([]time.Time, len(holds))
	for i, h := range holds {
		segs[i], dates[i], labels[i] = h.SegmentID, domain.NormalizeDate(h.Date), h.SeatLabel
		holders[i], expiries[i] = h.HolderID, h.ExpiresAt
	}

	// An existing row is only overwritten when it has expired or belongs to
	// the same holder; anything else leaves the row count short.
	tag, err := r.q.Exec(ctx, `
		INSERT INTO seat_holds (segment_id, travel_date, seat_label, holder_id, expires_at, created_at)
		SELECT s, d, l, h, e, $6 FROM unnest($1::text[], $2::date[], $3::text[], $4::text[], $5::timestamptz[]) AS t(s, d, l, h, e)
		ON CONFLICT (segment_id, travel_date, seat_label) DO UPDATE
		SET holder_id = EXCLUDED.holder_id, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
		WHERE seat_holds.expires_at <= $6 OR seat_holds.holder_id = EXCLUDED.holder_id
	`, segs, dates, labels, holders, expiries, now)
	if err != nil {
		return mapError("place holds", err)
	}
	if tag.RowsAffected() < int64(len(holds)) {
		return domain.ConflictError{Resource: "seat", Msg: "seat is held by another passenger"}
	}
	return nil
}

func (r *HoldRepo) ListLive(ctx context.Context, keys []domain.LedgerKey, now time.Time) ([]domain.SeatHold, error) {
	segs, dates := splitKeys(keys)
	rows, err := r.q.Query(ctx, `
		SELECT segment_id, travel_date, seat_label, holder_id, expires_at, created_at
		FROM seat_holds
		WHERE (segment_id, travel_date) IN (SELECT * FROM unnest($1::text[], $2::date[]))
		  AND expires_at > $3
		ORDER BY segment_id, seat_label
	`, segs, dates, now)
	if err != nil {
		return nil, mapError("list holds", err)
	}
	defer rows.Close()

	var out []domain.SeatHold
	for rows.Next() {
		var h domain.SeatHold
		if err := rows.Scan(&h.SegmentID, &h.Date, &h.SeatLabel, &h.HolderID, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, mapError("list holds", rows.Err())
}

func (r *HoldRepo) Release(ctx context.Context, keys []domain.LedgerKey, holderID string, labels []string) error {
	if labels == nil {
		labels = []string{}
	}
	segs, dates := splitKeys(keys)
	_, err := r.q.Exec(ctx, `
		DELETE FROM seat_holds
		WHERE holder_id = $3
		  AND (segment_id, travel_date) IN (SELECT * FROM unnest($1::text[], $2::date[]))
		  AND (cardinality($4::text[]) = 0 OR seat_label = ANY($4))
	`, segs, dates, holderID, labels)
	return mapError("release holds", err)
}

func (r *HoldRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM seat_holds WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, mapError("purge holds", err)
	}
	return tag.RowsAffected(), nil
}
