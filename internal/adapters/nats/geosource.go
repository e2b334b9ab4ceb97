package natsadapter

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// GeoSource implements ports.GeolocationSource over a NATS position
// subject. The simulator publishes interpolated positions this way so a
// session can be driven without a real device.
type GeoSource struct {
	conn    *nats.Conn
	subject string
}

// NewGeoSource creates a source reading positions from subject on conn.
func NewGeoSource(conn *nats.Conn, subject string) *GeoSource {
	return &GeoSource{conn: conn, subject: subject}
}

// Subscribe starts delivering positions. Malformed messages are skipped;
// a dropped connection surfaces as a single unavailable error.
func (g *GeoSource) Subscribe(
	onUpdate func(point domain.GeoPoint, accuracyMeters float64),
	onError func(reason domain.GeoErrorReason),
) (func(), error) {
	sub, err := g.conn.Subscribe(g.subject, func(msg *nats.Msg) {
		var pos domain.LivePosition
		if err := json.Unmarshal(msg.Data, &pos); err != nil {
			return
		}
		onUpdate(pos.Point, pos.AccuracyMeters)
	})
	if err != nil {
		onError(domain.GeoUnavailable)
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
