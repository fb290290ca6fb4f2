package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skyhop",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skyhop",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Reservation metrics
	BookingsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "reservations",
		Name:      "bookings_committed_total",
		Help:      "Bookings committed, by capacity mode",
	}, []string{"mode"})

	CapacityRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "reservations",
		Name:      "capacity_rejections_total",
		Help:      "Operations rejected for insufficient seats after locking",
	}, []string{"operation"})

	HoldsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "reservations",
		Name:      "holds_placed_total",
		Help:      "Seat holds placed or refreshed",
	})

	HoldConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "reservations",
		Name:      "hold_conflicts_total",
		Help:      "Hold requests rejected because a seat was taken",
	})

	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "reservations",
		Name:      "cancellations_total",
		Help:      "Cancellations, by refund tier",
	}, []string{"tier"})

	RefundDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "reservations",
		Name:      "refund_decisions_total",
		Help:      "Refund state transitions, by resulting status",
	}, []string{"status"})

	Reschedules = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "reservations",
		Name:      "reschedules_total",
		Help:      "Reschedule quotes and commits",
	}, []string{"stage"})

	LedgerTxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skyhop",
		Subsystem: "ledger",
		Name:      "transaction_duration_seconds",
		Help:      "Duration of capacity-mutating transactions",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation", "outcome"})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Outbox events published to the broker",
	})

	OutboxFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "outbox",
		Name:      "failed_total",
		Help:      "Outbox publish attempts that failed",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyhop",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyhop",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyhop",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyhop",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyhop",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool stats into the gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}

// ObserveLedgerTx records the duration of a capacity-mutating transaction.
func ObserveLedgerTx(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LedgerTxDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
