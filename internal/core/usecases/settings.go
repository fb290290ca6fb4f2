package usecases

import (
	"time"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// Settings carries the policy constants shared by the reservation services.
type Settings struct {
	HoldTTL       time.Duration
	Location      *time.Location
	Refund        domain.RefundPolicy
	Reschedule    domain.ReschedulePolicy
	MinChargeable int64
	// Now is the clock; nil means time.Now.
	Now func() time.Time
	// IdentifierAttempts bounds PNR regeneration on collision.
	IdentifierAttempts int
}

// DefaultSettings returns the production policy constants in UTC.
func DefaultSettings() Settings {
	return Settings{
		HoldTTL:            10 * time.Minute,
		Location:           time.UTC,
		Refund:             domain.DefaultRefundPolicy(),
		Reschedule:         domain.DefaultReschedulePolicy(),
		MinChargeable:      100,
		IdentifierAttempts: 3,
	}
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Settings) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s Settings) attempts() int {
	if s.IdentifierAttempts > 0 {
		return s.IdentifierAttempts
	}
	return 1
}
