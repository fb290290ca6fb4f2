package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// Subject roots shared by the publisher and subscribers.
const (
	ReservationSubjects = "reservations.>"
	FleetSubjects       = "fleet.>"
	CapacityWildcard    = "reservations.capacity.>"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "RESERVATIONS",
			Subjects:  []string{ReservationSubjects},
			Retention: nats.InterestPolicy,
			MaxAge:    72 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "FLEET",
			Subjects:  []string{FleetSubjects},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// Publish sends a payload to a JetStream subject.
func (p *Publisher) Publish(ctx context.Context, subject string, payload []byte) error {
	_, err := p.js.Publish(subject, payload, nats.Context(ctx))
	return err
}

// PublishEvent carries the outbox event ID as the JetStream message ID so a
// relay retry after a lost ack is deduplicated.
func (p *Publisher) PublishEvent(ctx context.Context, ev domain.OutboxEvent) error {
	_, err := p.js.Publish(ev.Subject, ev.Payload, nats.Context(ctx), nats.MsgId(ev.ID))
	return err
}

// FleetUpdatedSubject carries vehicle and timetable configuration changes.
const FleetUpdatedSubject = "fleet.vehicle.updated"

func (p *Publisher) PublishFleetUpdate(ctx context.Context, u *domain.FleetUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(FleetUpdatedSubject, data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
