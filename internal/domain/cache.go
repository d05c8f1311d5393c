package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking. Settlement paths use a per-market
// lock so concurrent resolve/finalize calls do not duplicate side effects.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed rate limiting for write endpoints.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// MarketCache is a short-TTL read cache in front of the market store, used by
// the hot market-detail path. Mutating services invalidate on every
// transition.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// SignalBus is the event-notification interface the ledger and market
// services publish to. The core has no dependency on any particular
// transport; the websocket hub is one subscriber.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Event channels published on the signal bus.
const (
	ChannelBalance = "ch:balance"
	ChannelMarket  = "ch:market"
)

// BalanceEvent is published on every ledger transaction.
type BalanceEvent struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
	Amount  int64  `json:"amount"`
	Kind    TxKind `json:"kind"`
}

// MarketEvent is published on market lifecycle transitions.
type MarketEvent struct {
	MarketID string       `json:"market_id"`
	Status   MarketStatus `json:"status"`
	Event    string       `json:"event"`
}
