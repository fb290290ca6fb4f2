package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/skyhop/internal/core/domain"
	"github.com/samirrijal/skyhop/internal/pkg/logging"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeFleetUpdates delivers vehicle and timetable changes on the shared
// "route-cache" durable, so each update reaches one API instance. That is
// enough while the route cache lives in Valkey; a per-instance cache would
// need SubscribeFleetUpdatesAs with a durable per instance.
func (s *Subscriber) SubscribeFleetUpdates(ctx context.Context, handler func(ctx context.Context, update *domain.FleetUpdate) error) error {
	return s.SubscribeFleetUpdatesAs(ctx, "route-cache", handler)
}

func (s *Subscriber) SubscribeFleetUpdatesAs(ctx context.Context, durable string, handler func(ctx context.Context, update *domain.FleetUpdate) error) error {
	log := logging.FromContext(ctx)
	sub, err := s.js.Subscribe(FleetSubjects, func(msg *nats.Msg) {
		var u domain.FleetUpdate
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			log.Warn("dropping malformed fleet update", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &u); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
