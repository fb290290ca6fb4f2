package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/skyhop/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("skyhop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Booking.HoldTTL != 10*time.Minute {
		t.Errorf("expected 10m hold, got %s", cfg.Booking.HoldTTL)
	}
	if cfg.Refund.FlatFee != 400 || cfg.Refund.FlatFeeAboveHours != 96 ||
		cfg.Refund.QuarterFromHours != 48 || cfg.Refund.HalfFromHours != 24 {
		t.Errorf("unexpected refund defaults: %+v", cfg.Refund)
	}
	if cfg.Reschedule.FeePercent != 10 || cfg.Reschedule.MinHoursBefore != 24 {
		t.Errorf("unexpected reschedule defaults: %+v", cfg.Reschedule)
	}
	if cfg.Telemetry.ServiceName != "skyhop-test" {
		t.Errorf("expected service name default, got %q", cfg.Telemetry.ServiceName)
	}
	if _, err := cfg.Booking.Location(); err != nil {
		t.Errorf("default timezone should load: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SKYHOP_BOOKING_HOLD_TTL", "15m")
	t.Setenv("SKYHOP_REFUND_FLAT_FEE", "500")
	t.Setenv("SKYHOP_DATABASE_HOST", "db.internal")

	cfg, err := config.Load("skyhop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Booking.HoldTTL != 15*time.Minute {
		t.Errorf("expected 15m, got %s", cfg.Booking.HoldTTL)
	}
	if cfg.Refund.FlatFee != 500 {
		t.Errorf("expected 500, got %d", cfg.Refund.FlatFee)
	}
	if !strings.Contains(cfg.Database.DSN(), "@db.internal:5432/") {
		t.Errorf("unexpected DSN: %s", cfg.Database.DSN())
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := config.Load("skyhop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Server.Port = 0
	cfg.Booking.HoldTTL = 0
	cfg.Refund.HalfFromHours = 72
	cfg.Reschedule.FeePercent = 150

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "booking.hold_ttl", "refund tiers", "reschedule.fee_percent"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestPolicies_MatchDomainDefaults(t *testing.T) {
	cfg, err := config.Load("skyhop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Refund.Policy().Quote(10000, 72); got.CancellationCharge != 2500 {
		t.Errorf("expected 2500 charge at 72h, got %d", got.CancellationCharge)
	}
	if got := cfg.Reschedule.Policy().Quote(10000, 11000, 1, false); got.TotalDue != 2000 {
		t.Errorf("expected 2000 due, got %d", got.TotalDue)
	}
}

func TestSettings_FromConfig(t *testing.T) {
	t.Setenv("SKYHOP_PAYMENT_MIN_CHARGEABLE", "250")
	t.Setenv("SKYHOP_RESCHEDULE_FEE_PERCENT", "15")

	cfg, err := config.Load("skyhop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := cfg.Settings()
	if s.MinChargeable != 250 || s.Reschedule.FeePercent != 15 {
		t.Errorf("unexpected settings: %+v", s)
	}
	if s.Location == nil || s.Location.String() != "Asia/Kathmandu" {
		t.Errorf("unexpected location: %v", s.Location)
	}
	if s.IdentifierAttempts != 3 {
		t.Errorf("expected default identifier attempts, got %d", s.IdentifierAttempts)
	}
}
