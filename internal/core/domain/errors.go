package domain

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError is a malformed request, rejected before any transaction.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Field != "":
		return fmt.Sprintf("invalid %s", e.Field)
	default:
		return "validation error"
	}
}

func (e ValidationError) Unwrap() error { return e.Err }

// CapacityError is an insufficient-seats failure found after locks are held.
type CapacityError struct {
	SegmentID string
	Date      time.Time
	Requested int
	Remaining int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("segment %s on %s has %d seats left, %d requested",
		e.SegmentID, FormatDate(e.Date), e.Remaining, e.Requested)
}

// ConflictError is a uniqueness or ownership clash: duplicate identifiers or
// a seat held or booked by another party.
type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Resource != "" && e.Msg != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// PaymentVerificationError is terminal for the attempt; no state was touched.
type PaymentVerificationError struct {
	OrderID string
	Reason  string
	Err     error
}

func (e PaymentVerificationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("payment for order %s could not be verified", e.OrderID)
	}
	return fmt.Sprintf("payment for order %s could not be verified: %s", e.OrderID, e.Reason)
}

func (e PaymentVerificationError) Unwrap() error { return e.Err }

// TransactionError is a deadlock, lock timeout or lost connection. The
// operation was rolled back entirely and may be retried.
type TransactionError struct {
	Op  string
	Err error
}

func (e TransactionError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transaction aborted: %v", e.Err)
	}
	return fmt.Sprintf("%s: transaction aborted: %v", e.Op, e.Err)
}

func (e TransactionError) Unwrap() error { return e.Err }

// PolicyStateError rejects an operation not allowed from the current state.
type PolicyStateError struct {
	Resource string
	State    string
	Msg      string
}

func (e PolicyStateError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s is %s", e.Resource, e.State)
	}
	return fmt.Sprintf("%s is %s: %s", e.Resource, e.State, e.Msg)
}

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	if e.Msg == "" {
		return "forbidden"
	}
	return e.Msg
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsCapacity(err error) bool {
	var target CapacityError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsPaymentVerification(err error) bool {
	var target PaymentVerificationError
	return errors.As(err, &target)
}

func IsTransaction(err error) bool {
	var target TransactionError
	return errors.As(err, &target)
}

func IsPolicyState(err error) bool {
	var target PolicyStateError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}
