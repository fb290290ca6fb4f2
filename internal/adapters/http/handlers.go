package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

// holderFor resolves whose holds a request acts on. Only administrators may
// name a holder other than themselves.
func holderFor(c *fiber.Ctx, requested string) (string, error) {
	caller := callerFrom(c)
	if requested == "" || requested == caller.UserID {
		return caller.UserID, nil
	}
	if !caller.IsAdmin() {
		return "", domain.ForbiddenError{Msg: "holder_id must be your own user id"}
	}
	return requested, nil
}

func dateQuery(c *fiber.Ctx) (string, error) {
	d := c.Query("date")
	if d == "" {
		return "", domain.ValidationError{Field: "date", Msg: "is required"}
	}
	return d, nil
}

// AvailabilityHandler returns the advisory seat count of a segment on a date.
func AvailabilityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := dateQuery(c)
		if err != nil {
			return writeError(c, err)
		}
		date, err := domain.ParseDate(raw)
		if err != nil {
			return writeError(c, err)
		}
		a, err := deps.Inventory.Available(c.UserContext(), c.Params("id"), date)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(a)
	}
}

// SeatMapHandler lists seat states on a per-seat vehicle. Seats held by the
// authenticated caller are reported available to them.
func SeatMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := dateQuery(c)
		if err != nil {
			return writeError(c, err)
		}
		date, err := domain.ParseDate(raw)
		if err != nil {
			return writeError(c, err)
		}
		requester, err := holderFor(c, c.Query("holder_id"))
		if err != nil {
			return writeError(c, err)
		}
		m, err := deps.Inventory.SeatMap(c.UserContext(), c.Params("id"), date, requester)
		if err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(m)
	}
}

type holdRequest struct {
	SegmentID  string   `json:"segment_id"`
	Date       string   `json:"date"`
	SeatLabels []string `json:"seat_labels"`
	HolderID   string   `json:"holder_id"`
}

func (r holdRequest) toDomain(c *fiber.Ctx) (usecases.HoldRequest, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return usecases.HoldRequest{}, err
	}
	holder, err := holderFor(c, r.HolderID)
	if err != nil {
		return usecases.HoldRequest{}, err
	}
	return usecases.HoldRequest{SegmentID: r.SegmentID, Date: date, SeatLabels: r.SeatLabels, HolderID: holder}, nil
}

// PlaceHoldHandler holds named seats for the configured hold duration.
func PlaceHoldHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body holdRequest
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		req, err := body.toDomain(c)
		if err != nil {
			return writeError(c, err)
		}
		res, err := deps.Holds.Hold(c.UserContext(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// ReleaseHoldHandler drops the holder's holds on the listed seats.
func ReleaseHoldHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body holdRequest
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		req, err := body.toDomain(c)
		if err != nil {
			return writeError(c, err)
		}
		if err := deps.Holds.Release(c.UserContext(), req); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type paymentProof struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
	Amount    int64  `json:"amount"`
}

type bookingRequest struct {
	SegmentID  string             `json:"segment_id"`
	Date       string             `json:"date"`
	Passengers []domain.Passenger `json:"passengers"`
	Billing    domain.Billing     `json:"billing"`
	Payment    paymentProof       `json:"payment"`
	HolderID   string             `json:"holder_id"`
}

// CreateBookingHandler commits a paid booking.
func CreateBookingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body bookingRequest
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		date, err := domain.ParseDate(body.Date)
		if err != nil {
			return writeError(c, err)
		}
		holder, err := holderFor(c, body.HolderID)
		if err != nil {
			return writeError(c, err)
		}
		res, err := deps.Bookings.Commit(c.UserContext(), callerFrom(c), usecases.BookingDraft{
			SegmentID:  body.SegmentID,
			Date:       date,
			Passengers: body.Passengers,
			Billing:    body.Billing,
			Payment: domain.Payment{
				OrderID:   body.Payment.OrderID,
				PaymentID: body.Payment.PaymentID,
				Signature: body.Payment.Signature,
				Amount:    body.Payment.Amount,
			},
			HolderID: holder,
		})
		if err != nil {
			return writeError(c, err)
		}
		c.Location("/v1/bookings/" + res.Booking.ID)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// ListBookingsHandler pages through the caller's bookings.
func ListBookingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c, 20, 100)
		bookings, total, err := deps.Bookings.List(c.UserContext(), callerFrom(c), offset, limit)
		if err != nil {
			return writeError(c, err)
		}
		if bookings == nil {
			bookings = []domain.Booking{}
		}
		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: bookings, Pagination: pg})
	}
}

// GetBookingHandler returns one booking to its owner or an administrator.
func GetBookingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := deps.Bookings.Get(c.UserContext(), callerFrom(c), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(b)
	}
}

// BookingByPNRHandler looks a booking up by its record locator.
func BookingByPNRHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := deps.Bookings.GetByPNR(c.UserContext(), c.Params("pnr"))
		if err != nil {
			return writeError(c, err)
		}
		if !b.OwnedBy(callerFrom(c)) {
			// Do not reveal that the locator exists.
			return writeError(c, domain.NotFoundError{Resource: "booking"})
		}
		return c.JSON(b)
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Mode   string `json:"mode"`
}

// CancelBookingHandler cancels under the published refund policy.
func CancelBookingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body cancelRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		res, err := deps.Cancellations.Cancel(c.UserContext(), callerFrom(c), c.Params("id"), body.Reason)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(res)
	}
}

// BookingRefundsHandler lists the refund records of a booking.
func BookingRefundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refunds, err := deps.Cancellations.RefundsForBooking(c.UserContext(), callerFrom(c), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		if refunds == nil {
			refunds = []domain.RefundRecord{}
		}
		return c.JSON(refunds)
	}
}

type rescheduleQuoteRequest struct {
	NewSegmentID  string   `json:"new_segment_id"`
	NewDate       string   `json:"new_date"`
	NewSeatLabels []string `json:"new_seat_labels"`
	WaiveFee      bool     `json:"waive_fee"`
}

// RescheduleQuoteHandler prices a move and stores the quote.
func RescheduleQuoteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body rescheduleQuoteRequest
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		date, err := domain.ParseDate(body.NewDate)
		if err != nil {
			return writeError(c, err)
		}
		res, err := deps.Reschedules.Quote(c.UserContext(), callerFrom(c), usecases.RescheduleQuoteRequest{
			BookingID:     c.Params("id"),
			NewSegmentID:  body.NewSegmentID,
			NewDate:       date,
			NewSeatLabels: body.NewSeatLabels,
			WaiveFee:      body.WaiveFee,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

type rescheduleCommitRequest struct {
	RequestID string `json:"request_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// RescheduleCommitHandler applies the latest quote.
func RescheduleCommitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body rescheduleCommitRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		res, err := deps.Reschedules.Commit(c.UserContext(), callerFrom(c), usecases.RescheduleCommitRequest{
			BookingID: c.Params("id"),
			RequestID: body.RequestID,
			PaymentID: body.PaymentID,
			Signature: body.Signature,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(res)
	}
}

// AdminCancelHandler cancels any booking; mode full_refund bypasses the
// refund tiers.
func AdminCancelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body cancelRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		mode := usecases.CancelMode(body.Mode)
		if mode == "" {
			mode = usecases.CancelModePolicy
		}
		res, err := deps.Cancellations.AdminCancel(c.UserContext(), callerFrom(c), c.Params("id"), body.Reason, mode)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(res)
	}
}

// ListRefundsHandler lists refunds by status, PENDING by default.
func ListRefundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := domain.RefundStatus(strings.ToUpper(c.Query("status")))
		_, limit := pageParams(c, 50, 200)
		refunds, err := deps.Cancellations.ListRefunds(c.UserContext(), callerFrom(c), status, limit)
		if err != nil {
			return writeError(c, err)
		}
		if refunds == nil {
			refunds = []domain.RefundRecord{}
		}
		return c.JSON(refunds)
	}
}

type refundDecisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

// DecideRefundHandler approves or rejects a pending refund.
func DecideRefundHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body refundDecisionRequest
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		r, err := deps.Cancellations.ProcessRefund(c.UserContext(), callerFrom(c), c.Params("id"),
			usecases.RefundDecision(strings.ToLower(body.Decision)), body.Note)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(r)
	}
}

// SettleRefundHandler pays out an approved refund immediately instead of
// waiting for the settlement sweep.
func SettleRefundHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := deps.Cancellations.SettleRefund(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(r)
	}
}
