package domain

import (
	"fmt"
	"time"
)

// VehicleKind distinguishes fixed-wing aircraft from rotorcraft.
type VehicleKind string

const (
	VehicleAircraft   VehicleKind = "aircraft"
	VehicleRotorcraft VehicleKind = "rotorcraft"
)

// CapacityMode selects how booked capacity is recorded for a vehicle.
type CapacityMode string

const (
	// CapacityAggregate keeps a single booked counter per (segment, date).
	CapacityAggregate CapacityMode = "aggregate"
	// CapacityPerSeat keeps one assignment row per occupied named seat.
	CapacityPerSeat CapacityMode = "per_seat"
)

// DefaultCapacityMode returns the representation used when a vehicle does
// not override it.
func DefaultCapacityMode(kind VehicleKind) CapacityMode {
	if kind == VehicleRotorcraft {
		return CapacityPerSeat
	}
	return CapacityAggregate
}

// Valid reports whether m is a known representation.
func (m CapacityMode) Valid() bool {
	return m == CapacityAggregate || m == CapacityPerSeat
}

// Vehicle is the static configuration the route model is derived from.
type Vehicle struct {
	ID                string       `json:"id"`
	Code              string       `json:"code"`
	Kind              VehicleKind  `json:"kind"`
	StartPoint        string       `json:"start_point"`
	EndPoint          string       `json:"end_point"`
	IntermediateStops []string     `json:"intermediate_stops,omitempty"`
	SeatLimit         int          `json:"seat_limit"`
	CapacityMode      CapacityMode `json:"capacity_mode"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Mode returns the vehicle's capacity representation, falling back to the
// per-kind default.
func (v *Vehicle) Mode() CapacityMode {
	if v.CapacityMode.Valid() {
		return v.CapacityMode
	}
	return DefaultCapacityMode(v.Kind)
}

// ScheduleSegment is one sellable leg on a vehicle's route.
type ScheduleSegment struct {
	ID              string         `json:"id"`
	VehicleID       string         `json:"vehicle_id"`
	DeparturePoint  string         `json:"departure_point"`
	ArrivalPoint    string         `json:"arrival_point"`
	DepartureMinute int            `json:"departure_minute"` // minutes after local midnight
	ArrivalMinute   int            `json:"arrival_minute"`
	Price           int64          `json:"price"`
	OperatingDays   []time.Weekday `json:"operating_days,omitempty"` // empty = every day
	Active          bool           `json:"active"`
}

// OperatesOn reports whether the segment runs on the weekday of date.
func (s *ScheduleSegment) OperatesOn(date time.Time) bool {
	if len(s.OperatingDays) == 0 {
		return true
	}
	wd := date.Weekday()
	for _, d := range s.OperatingDays {
		if d == wd {
			return true
		}
	}
	return false
}

// DepartureAt combines a travel date with the segment's departure time in loc.
func (s *ScheduleSegment) DepartureAt(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(s.DepartureMinute) * time.Minute)
}

// DepartureClock renders the departure time as HH:MM.
func (s *ScheduleSegment) DepartureClock() string {
	return fmt.Sprintf("%02d:%02d", s.DepartureMinute/60, s.DepartureMinute%60)
}

// LedgerKey addresses one capacity record.
type LedgerKey struct {
	SegmentID string    `json:"segment_id"`
	Date      time.Time `json:"date"`
}

func (k LedgerKey) String() string {
	return k.SegmentID + "@" + FormatDate(k.Date)
}

// LedgerEntry records what a booking debited from one capacity record, so a
// credit-back releases exactly that.
type LedgerEntry struct {
	BookingID  string       `json:"booking_id"`
	SegmentID  string       `json:"segment_id"`
	Date       time.Time    `json:"date"`
	Mode       CapacityMode `json:"mode"`
	Quantity   int          `json:"quantity"`
	SeatLabels []string     `json:"seat_labels,omitempty"`
}

// Key returns the capacity record the entry belongs to.
func (e LedgerEntry) Key() LedgerKey {
	return LedgerKey{SegmentID: e.SegmentID, Date: e.Date}
}

// SeatHold is a provisional, time-boxed claim on one named seat.
type SeatHold struct {
	SegmentID string    `json:"segment_id"`
	Date      time.Time `json:"date"`
	SeatLabel string    `json:"seat_label"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the hold still obstructs other holders at now.
func (h *SeatHold) Live(now time.Time) bool {
	return now.Before(h.ExpiresAt)
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	// BookingSuccess is a legacy confirmed state still present in older rows.
	BookingSuccess BookingStatus = "SUCCESS"
)

// Confirmed reports whether the status counts as a live, confirmed booking.
func (s BookingStatus) Confirmed() bool {
	return s == BookingConfirmed || s == BookingSuccess
}

// Passenger is one entry of the booking manifest.
type Passenger struct {
	Name      string `json:"name"`
	Age       int    `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
	SeatLabel string `json:"seat_label,omitempty"`
}

// Billing is the contact snapshot captured at booking time.
type Billing struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Payment links a booking to a verified gateway payment.
type Payment struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"-"`
	Amount    int64  `json:"amount"`
}

// Booking is a reservation against one governing segment on one date.
type Booking struct {
	ID                 string        `json:"id"`
	PNR                string        `json:"pnr"`
	BookingNumber      string        `json:"booking_number"`
	UserID             string        `json:"user_id"`
	SegmentID          string        `json:"segment_id"`
	TravelDate         time.Time     `json:"travel_date"`
	Status             BookingStatus `json:"status"`
	Passengers         []Passenger   `json:"passengers"`
	Billing            Billing       `json:"billing"`
	Payment            Payment       `json:"payment"`
	TotalFare          int64         `json:"total_fare"`
	CancellationCharge int64         `json:"cancellation_charge"`
	RefundAmount       int64         `json:"refund_amount"`
	CancelReason       string        `json:"cancel_reason,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	RescheduleCount    int           `json:"reschedule_count"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// SeatLabels returns the seat labels assigned across the manifest.
func (b *Booking) SeatLabels() []string {
	var labels []string
	for _, p := range b.Passengers {
		if p.SeatLabel != "" {
			labels = append(labels, p.SeatLabel)
		}
	}
	return labels
}

// OwnedBy reports whether the caller may act on the booking as its owner or
// as an administrator.
func (b *Booking) OwnedBy(c Caller) bool {
	return c.IsAdmin() || (c.UserID != "" && c.UserID == b.UserID)
}

// AffectedSegment reports the post-commit remaining seats of one capacity
// record touched by an operation.
type AffectedSegment struct {
	SegmentID string    `json:"segment_id"`
	Date      time.Time `json:"date"`
	SeatsLeft int       `json:"seats_left"`
}

// RefundStatus is the lifecycle of a refund record.
type RefundStatus string

const (
	RefundPending       RefundStatus = "PENDING"
	RefundApproved      RefundStatus = "APPROVED"
	RefundRejected      RefundStatus = "REJECTED"
	RefundProcessed     RefundStatus = "PROCESSED"
	RefundNotApplicable RefundStatus = "NOT_APPLICABLE"
)

// RefundRecord is created once per cancellation.
type RefundRecord struct {
	ID                   string       `json:"id"`
	BookingID            string       `json:"booking_id"`
	OriginalFare         int64        `json:"original_fare"`
	RefundAmount         int64        `json:"refund_amount"`
	CancellationCharge   int64        `json:"cancellation_charge"`
	Tier                 RefundTier   `json:"tier"`
	Status               RefundStatus `json:"status"`
	HoursBeforeDeparture float64      `json:"hours_before_departure"`
	Reason               string       `json:"reason,omitempty"`
	RequestedBy          string       `json:"requested_by"`
	ProcessedBy          string       `json:"processed_by,omitempty"`
	ProcessedAt          *time.Time   `json:"processed_at,omitempty"`
	DecisionNote         string       `json:"decision_note,omitempty"`
	PayoutReference      string       `json:"payout_reference,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

// RescheduleStatus is the lifecycle of a persisted reschedule quote.
type RescheduleStatus string

const (
	ReschedulePending    RescheduleStatus = "PENDING"
	RescheduleCompleted  RescheduleStatus = "COMPLETED"
	RescheduleSuperseded RescheduleStatus = "SUPERSEDED"
)

// RescheduleRequest persists a quote until it is committed.
type RescheduleRequest struct {
	ID              string           `json:"id"`
	BookingID       string           `json:"booking_id"`
	NewSegmentID    string           `json:"new_segment_id"`
	NewDate         time.Time        `json:"new_date"`
	NewSeatLabels   []string         `json:"new_seat_labels,omitempty"`
	Quote           RescheduleQuote  `json:"quote"`
	PaymentOrderID  string           `json:"payment_order_id,omitempty"`
	Status          RescheduleStatus `json:"status"`
	RequestedBy     string           `json:"requested_by"`
	CreatedAt       time.Time        `json:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// OutboxStatus tracks relay progress of an event.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxEvent is written in the same transaction as the state it describes.
type OutboxEvent struct {
	ID            string       `json:"id"`
	AggregateType string       `json:"aggregate_type"`
	AggregateID   string       `json:"aggregate_id"`
	EventType     string       `json:"event_type"`
	Subject       string       `json:"subject"`
	Payload       []byte       `json:"payload"`
	Status        OutboxStatus `json:"status"`
	RetryCount    int          `json:"retry_count"`
	MaxRetries    int          `json:"max_retries"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
}

// CapacityChanged is published for real-time seat-map consumers.
type CapacityChanged struct {
	SegmentID string `json:"segment_id"`
	Date      string `json:"date"`
	SeatsLeft int    `json:"seats_left"`
	Reason    string `json:"reason"` // booking | cancellation | reschedule
	BookingID string `json:"booking_id,omitempty"`
}

// FleetUpdate announces a vehicle or timetable configuration change.
type FleetUpdate struct {
	VehicleID string    `json:"vehicle_id"`
	Kind      string    `json:"kind"` // vehicle | timetable
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is the caller's authorization role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Caller is the already-authenticated identity an operation runs as.
type Caller struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the caller holds the administrator role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
