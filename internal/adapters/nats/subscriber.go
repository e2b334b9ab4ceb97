package natsadapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

func (s *Subscriber) SubscribeSpotRefresh(ctx context.Context, handler func(ctx context.Context) error) error {
	sub, err := s.js.Subscribe("parking.spots.refresh", func(msg *nats.Msg) {
		if err := handler(ctx); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeSpotStatus(ctx context.Context, handler func(ctx context.Context, spotID string, status domain.SpotStatus) error) error {
	sub, err := s.js.Subscribe("parking.spot.*.status", func(msg *nats.Msg) {
		// parking.spot.<id>.status
		parts := strings.Split(msg.Subject, ".")
		if len(parts) != 4 {
			_ = msg.Ack()
			return
		}
		status := domain.SpotStatus(msg.Data)
		if !status.Valid() {
			_ = msg.Ack()
			return
		}
		if err := handler(ctx, parts[2], status); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes everything and drains the connection.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
