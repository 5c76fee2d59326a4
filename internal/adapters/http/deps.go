package http

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/towerlocator/internal/core/usecases"
)

// Pinger is satisfied by the cache adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Towers      *usecases.TowerService
	NATS        *nats.Conn // nil disables the WebSocket relay
	Cache       Pinger
	OpenAPIPath string // document served under /docs
}
