package ports

import (
	"context"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// EventPublisher publishes relayed events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// EventSubscriber subscribes to fleet configuration changes.
type EventSubscriber interface {
	SubscribeFleetUpdates(ctx context.Context, handler func(ctx context.Context, update *domain.FleetUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// PaymentVerifier checks a gateway payment signature.
type PaymentVerifier interface {
	Verify(ctx context.Context, orderID, paymentID, signature string) (bool, error)
}

// PaymentOrder is a gateway order awaiting payment.
type PaymentOrder struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status,omitempty"`
}

// PaymentGateway creates orders and pays out refunds.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, receipt string) (*PaymentOrder, error)
	// FetchOrder returns the gateway's record of an order, including the
	// amount captured against it.
	FetchOrder(ctx context.Context, orderID string) (*PaymentOrder, error)
	Refund(ctx context.Context, paymentID string, amount int64, reference string) (string, error)
	// MinimumChargeable is the smallest amount the gateway accepts.
	MinimumChargeable() int64
}
