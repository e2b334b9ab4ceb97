package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
// Position updates go over the plain connection (fire-and-forget, high
// churn); spot events go through JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
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

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "PARKING_SPOTS",
			Subjects:  []string{"parking.spot.>", "parking.spots.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishPosition(ctx context.Context, sessionID string, pos *domain.LivePosition) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return p.conn.Publish("parking.position."+sessionID, data)
}

func (p *Publisher) PublishSpotRefresh(ctx context.Context) error {
	_, err := p.js.Publish("parking.spots.refresh", nil)
	return err
}

func (p *Publisher) PublishSpotStatus(ctx context.Context, spotID string, status domain.SpotStatus) error {
	_, err := p.js.Publish("parking.spot."+spotID+".status", []byte(status))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. the
// simulator position relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
