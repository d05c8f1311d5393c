package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/octagon/internal/domain"
	"github.com/alanyoungcy/octagon/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// silentNotifier has no senders, so Notify is always a no-op.
func silentNotifier() *notify.Notifier {
	return notify.NewNotifier(nil, nil, testLogger())
}

// fakeBus records published events per channel.
type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	err       error
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string][][]byte)}
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return b.err
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) events(channel string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[channel]
}

// fakeCache is an in-memory MarketCache.
type fakeCache struct {
	mu          sync.Mutex
	markets     map[string]domain.Market
	invalidated []string
	setErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{markets: make(map[string]domain.Market)}
}

func (c *fakeCache) Set(ctx context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.markets[m.ID] = m
	return nil
}

func (c *fakeCache) Get(ctx context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *fakeCache) Invalidate(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markets, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

// fakeLimiter returns a fixed verdict.
type fakeLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.calls++
	return l.allowed, l.err
}

// fakeLocks hands out no-op unlocks, or refuses when held is set.
type fakeLocks struct {
	held bool
}

func (l *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}
