package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// SQLSTATE codes the ledger cares about.
const (
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// mapError translates driver errors into the domain taxonomy. Errors that
// are already domain errors pass through untouched.
func mapError(op string, err error) error {
	if err == nil || isDomain(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return domain.ConflictError{Resource: constraintResource(pgErr.ConstraintName), Msg: pgErr.Detail, Err: err}
		case codeForeignKeyViolation:
			return domain.NotFoundError{Resource: referencedResource(pgErr.ConstraintName), Err: err}
		case codeCheckViolation:
			return domain.ConflictError{Resource: "capacity", Msg: pgErr.Message, Err: err}
		case codeDeadlockDetected, codeSerializationFailure, codeLockNotAvailable, codeQueryCanceled:
			return domain.TransactionError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return domain.TransactionError{Op: op, Err: err}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return domain.TransactionError{Op: op, Err: err}
	}
	return err
}

func notFound(resource string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundError{Resource: resource, Err: err}
	}
	return mapError("query "+resource, err)
}

func constraintResource(name string) string {
	switch {
	case strings.HasPrefix(name, "bookings_"):
		return "booking"
	case strings.HasPrefix(name, "seat_"):
		return "seat"
	case strings.HasPrefix(name, "refunds_"):
		return "refund"
	case strings.HasPrefix(name, "idx_reschedule"), strings.HasPrefix(name, "reschedule_"):
		return "reschedule"
	default:
		return name
	}
}

// referencedResource names the parent row a foreign key points at, from
// constraint names like "booking_ledger_entries_booking_id_fkey".
func referencedResource(constraint string) string {
	switch {
	case strings.Contains(constraint, "_booking_id_"):
		return "booking"
	case strings.Contains(constraint, "_segment_id_"), strings.Contains(constraint, "_new_segment_id_"):
		return "segment"
	case strings.Contains(constraint, "_vehicle_id_"):
		return "vehicle"
	default:
		return constraint
	}
}

func isDomain(err error) bool {
	return domain.IsValidation(err) || domain.IsCapacity(err) || domain.IsConflict(err) ||
		domain.IsPaymentVerification(err) || domain.IsTransaction(err) || domain.IsPolicyState(err) ||
		domain.IsNotFound(err) || domain.IsForbidden(err)
}
