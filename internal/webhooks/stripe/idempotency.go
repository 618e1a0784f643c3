package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upliftlabs/calculator-backend/pkg/redis"
)

// Guard dedupes an id within a scope. CheckAndMark returns true when the id
// was seen before.
type Guard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// IdempotencyGuard marks processed ids in Redis so webhook replays and the
// client-confirm race collapse to a single effect.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("id is required")
	}
	key := g.store.IdempotencyKey(g.scope, id)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *IdempotencyGuard) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	key := g.store.IdempotencyKey(g.scope, id)
	return g.store.Del(ctx, key)
}

// MemoryGuard is the in-process fallback used when Redis is not configured.
// It provides the same at-most-once semantics within a single instance.
type MemoryGuard struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		seen:  make(map[string]time.Time),
		ttl:   ttl,
		clock: time.Now,
	}
}

func (g *MemoryGuard) CheckAndMark(_ context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("id is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.prune(now)
	if _, ok := g.seen[id]; ok {
		return true, nil
	}
	g.seen[id] = now.Add(g.ttl)
	return false, nil
}

func (g *MemoryGuard) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, id)
	return nil
}

func (g *MemoryGuard) prune(now time.Time) {
	if g.ttl <= 0 {
		return
	}
	for id, expiry := range g.seen {
		if now.After(expiry) {
			delete(g.seen, id)
		}
	}
}
