// Package feed talks to the upstream token gateway. It contains the
// REST poller, the WebSocket streamer, the tolerant payload parsers
// shared by both, and the reconnect policy the streamer follows.
package feed

import (
	"context"

	"pumpwatch/internal/domain"
)

// Event is one record pushed by a streaming source. Exactly one of the
// two pointers is set.
type Event struct {
	Token *domain.TokenRecord
	Trade *domain.TradeRecord
}

// Poller fetches dataset pages on demand. Implemented by Client.
type Poller interface {
	ListNew(ctx context.Context, limit int) ([]domain.TokenRecord, error)
	ListBonding(ctx context.Context, limit int) ([]domain.TokenRecord, error)
	ListGraduated(ctx context.Context, limit int) ([]domain.TokenRecord, error)
	TokenTrades(ctx context.Context, mint string, limit int) ([]domain.TradeRecord, error)
}

// Streamer pushes records as the gateway emits them. Implemented by Stream.
type Streamer interface {
	Events() <-chan Event
	Run(ctx context.Context) error
	State() domain.ConnState
}
