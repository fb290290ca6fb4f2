package domain

import "time"

// RefundTier names the band of the cancellation table that applied.
type RefundTier string

const (
	TierFlatFee     RefundTier = "flat_fee"
	TierQuarter     RefundTier = "quarter_charge"
	TierHalf        RefundTier = "half_charge"
	TierFullCharge  RefundTier = "full_charge"
	TierAdminRefund RefundTier = "admin_full_refund"
)

// RefundPolicy is the tiered cancellation table. Thresholds are hours before
// departure.
type RefundPolicy struct {
	FlatFee              int64   `json:"flat_fee"`
	FlatFeeAboveHours    float64 `json:"flat_fee_above_hours"`
	QuarterFromHours     float64 `json:"quarter_from_hours"`
	HalfFromHours        float64 `json:"half_from_hours"`
	QuarterChargePercent int64   `json:"quarter_charge_percent"`
	HalfChargePercent    int64   `json:"half_charge_percent"`
}

// DefaultRefundPolicy is: >96h flat 400, 48-96h 25%, 24-48h 50%, <24h 100%.
func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{
		FlatFee:              400,
		FlatFeeAboveHours:    96,
		QuarterFromHours:     48,
		HalfFromHours:        24,
		QuarterChargePercent: 25,
		HalfChargePercent:    50,
	}
}

// RefundQuote is the outcome of applying a policy to a fare.
type RefundQuote struct {
	Tier                 RefundTier `json:"tier"`
	CancellationCharge   int64      `json:"cancellation_charge"`
	RefundAmount         int64      `json:"refund_amount"`
	HoursBeforeDeparture float64    `json:"hours_before_departure"`
}

// Quote applies the table to fare at hours before departure. hours may be
// fractional or negative.
func (p RefundPolicy) Quote(fare int64, hours float64) RefundQuote {
	q := RefundQuote{HoursBeforeDeparture: hours}
	switch {
	case hours > p.FlatFeeAboveHours:
		q.Tier = TierFlatFee
		q.CancellationCharge = min(p.FlatFee, fare)
	case hours >= p.QuarterFromHours:
		q.Tier = TierQuarter
		q.CancellationCharge = percentOf(fare, p.QuarterChargePercent)
	case hours >= p.HalfFromHours:
		q.Tier = TierHalf
		q.CancellationCharge = percentOf(fare, p.HalfChargePercent)
	default:
		q.Tier = TierFullCharge
		q.CancellationCharge = fare
	}
	q.RefundAmount = max(fare-q.CancellationCharge, 0)
	return q
}

// FullRefund is the administrator override: no charge.
func FullRefund(fare int64, hours float64) RefundQuote {
	return RefundQuote{
		Tier:                 TierAdminRefund,
		RefundAmount:         fare,
		HoursBeforeDeparture: hours,
	}
}

// HoursUntil returns the fractional hours from now until t.
func HoursUntil(t, now time.Time) float64 {
	return t.Sub(now).Hours()
}

// ReschedulePolicy governs fee and cut-off for moving a booking.
type ReschedulePolicy struct {
	FeePercent     int64   `json:"fee_percent"`
	MinHoursBefore float64 `json:"min_hours_before"`
}

// DefaultReschedulePolicy charges 10% and closes 24h before departure.
func DefaultReschedulePolicy() ReschedulePolicy {
	return ReschedulePolicy{FeePercent: 10, MinHoursBefore: 24}
}

// RescheduleQuote is the amount owed to move a booking.
type RescheduleQuote struct {
	OriginalFare    int64 `json:"original_fare"`
	NewFare         int64 `json:"new_fare"`
	ReschedulingFee int64 `json:"rescheduling_fee"`
	FareDifference  int64 `json:"fare_difference"`
	TotalDue        int64 `json:"total_due"`
	NewTotalFare    int64 `json:"new_total_fare"`
	PaymentRequired bool  `json:"payment_required"`
	FeeWaived       bool  `json:"fee_waived"`
}

// Quote computes the fee and fare delta. newPrice is the per-passenger price
// of the new segment. A negative fare difference is reported but never
// refunded.
func (p ReschedulePolicy) Quote(originalFare, newPrice int64, passengers int, waiveFee bool) RescheduleQuote {
	q := RescheduleQuote{
		OriginalFare: originalFare,
		NewFare:      newPrice * int64(passengers),
		FeeWaived:    waiveFee,
	}
	if !waiveFee {
		q.ReschedulingFee = percentOf(originalFare, p.FeePercent)
	}
	q.FareDifference = q.NewFare - originalFare
	q.TotalDue = q.ReschedulingFee + max(q.FareDifference, 0)
	q.NewTotalFare = originalFare + q.TotalDue
	return q
}

func percentOf(amount, pct int64) int64 {
	return amount * pct / 100
}
