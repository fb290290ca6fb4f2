package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timetable zones must resolve on minimal images

	"github.com/spf13/viper"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/core/usecases"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Booking    BookingConfig    `mapstructure:"booking"`
	Refund     RefundConfig     `mapstructure:"refund"`
	Reschedule RescheduleConfig `mapstructure:"reschedule"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	User             string `mapstructure:"user"`
	Password         string `mapstructure:"password"`
	DBName           string `mapstructure:"dbname"`
	SSLMode          string `mapstructure:"sslmode"`
	MaxConns         int32  `mapstructure:"max_conns"`
	StatementTimeout int    `mapstructure:"statement_timeout_ms"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

type TelemetryConfig struct {
	ServiceName   string `mapstructure:"service_name"`
	CollectorAddr string `mapstructure:"collector_addr"`
	Enabled       bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	SweepCron string `mapstructure:"sweep_cron"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type PaymentConfig struct {
	KeyID         string `mapstructure:"key_id"`
	KeySecret     string `mapstructure:"key_secret"`
	GatewayURL    string `mapstructure:"gateway_url"`
	Currency      string `mapstructure:"currency"`
	MinChargeable int64  `mapstructure:"min_chargeable"`
}

type BookingConfig struct {
	HoldTTL       time.Duration `mapstructure:"hold_ttl"`
	Timezone      string        `mapstructure:"timezone"`
	RouteCacheTTL time.Duration `mapstructure:"route_cache_ttl"`
}

// Location resolves the timetable's time zone.
func (b BookingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(b.Timezone)
}

type RefundConfig struct {
	FlatFee              int64   `mapstructure:"flat_fee"`
	FlatFeeAboveHours    float64 `mapstructure:"flat_fee_above_hours"`
	QuarterFromHours     float64 `mapstructure:"quarter_charge_from_hours"`
	HalfFromHours        float64 `mapstructure:"half_charge_from_hours"`
	QuarterChargePercent int64   `mapstructure:"quarter_charge_percent"`
	HalfChargePercent    int64   `mapstructure:"half_charge_percent"`
}

// Policy converts the tier table into its domain form.
func (r RefundConfig) Policy() domain.RefundPolicy {
	return domain.RefundPolicy{
		FlatFee:              r.FlatFee,
		FlatFeeAboveHours:    r.FlatFeeAboveHours,
		QuarterFromHours:     r.QuarterFromHours,
		HalfFromHours:        r.HalfFromHours,
		QuarterChargePercent: r.QuarterChargePercent,
		HalfChargePercent:    r.HalfChargePercent,
	}
}

type RescheduleConfig struct {
	FeePercent     int64   `mapstructure:"fee_percent"`
	MinHoursBefore float64 `mapstructure:"min_hours_before"`
}

func (r RescheduleConfig) Policy() domain.ReschedulePolicy {
	return domain.ReschedulePolicy{FeePercent: r.FeePercent, MinHoursBefore: r.MinHoursBefore}
}

type OutboxConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	RetentionDays int           `mapstructure:"retention_days"`
}

// Settings assembles the reservation policy constants. Validate has already
// checked that the time zone resolves.
func (c *Config) Settings() usecases.Settings {
	s := usecases.DefaultSettings()
	s.HoldTTL = c.Booking.HoldTTL
	if loc, err := c.Booking.Location(); err == nil {
		s.Location = loc
	}
	s.Refund = c.Refund.Policy()
	s.Reschedule = c.Reschedule.Policy()
	s.MinChargeable = c.Payment.MinChargeable
	return s
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SKYHOP_DATABASE_HOST → database.host
	v.SetEnvPrefix("SKYHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "skyhop")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "skyhop")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.statement_timeout_ms", 5000)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.namespace", "skyhop")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.collector_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "settlement-queue")
	v.SetDefault("temporal.sweep_cron", "*/5 * * * *")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("payment.key_id", "")
	v.SetDefault("payment.key_secret", "")
	v.SetDefault("payment.gateway_url", "https://api.razorpay.com/v1")
	v.SetDefault("payment.currency", "NPR")
	v.SetDefault("payment.min_chargeable", 100)
	v.SetDefault("booking.hold_ttl", 10*time.Minute)
	v.SetDefault("booking.timezone", "Asia/Kathmandu")
	v.SetDefault("booking.route_cache_ttl", 10*time.Minute)
	v.SetDefault("refund.flat_fee", 400)
	v.SetDefault("refund.flat_fee_above_hours", 96)
	v.SetDefault("refund.quarter_charge_from_hours", 48)
	v.SetDefault("refund.half_charge_from_hours", 24)
	v.SetDefault("refund.quarter_charge_percent", 25)
	v.SetDefault("refund.half_charge_percent", 50)
	v.SetDefault("reschedule.fee_percent", 10)
	v.SetDefault("reschedule.min_hours_before", 24)
	v.SetDefault("outbox.poll_interval", 500*time.Millisecond)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.retention_days", 7)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "database.max_conns must be positive")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Booking.HoldTTL <= 0 {
		errs = append(errs, "booking.hold_ttl must be positive")
	}
	if _, err := c.Booking.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("booking.timezone %q: %v", c.Booking.Timezone, err))
	}
	if c.Refund.FlatFee < 0 {
		errs = append(errs, "refund.flat_fee must not be negative")
	}
	if !(c.Refund.FlatFeeAboveHours >= c.Refund.QuarterFromHours && c.Refund.QuarterFromHours >= c.Refund.HalfFromHours) {
		errs = append(errs, "refund tiers must satisfy flat_fee_above_hours >= quarter_charge_from_hours >= half_charge_from_hours")
	}
	percents := []struct {
		name string
		pct  int64
	}{
		{"refund.quarter_charge_percent", c.Refund.QuarterChargePercent},
		{"refund.half_charge_percent", c.Refund.HalfChargePercent},
		{"reschedule.fee_percent", c.Reschedule.FeePercent},
	}
	for _, p := range percents {
		if p.pct < 0 || p.pct > 100 {
			errs = append(errs, fmt.Sprintf("%s must be 0-100, got %d", p.name, p.pct))
		}
	}
	if c.Payment.MinChargeable < 0 {
		errs = append(errs, "payment.min_chargeable must not be negative")
	}
	if c.Outbox.PollInterval <= 0 {
		errs = append(errs, "outbox.poll_interval must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, "outbox.batch_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
