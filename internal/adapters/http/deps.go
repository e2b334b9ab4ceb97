package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/aparka/internal/adapters/postgres"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Spots     *usecases.SpotService
	Routing   ports.RoutingProvider
	Publisher ports.EventPublisher
	Engine    usecases.NavigationConfig
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     ports.CacheService
}
