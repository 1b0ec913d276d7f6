package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"AutoTrader/internal/domain/models"
	"AutoTrader/internal/domain/repository"
	"AutoTrader/pkg/cache"
)

// SignalCache stores the latest SignalEvent per symbol under
// "signal:latest:<SYMBOL>" in any cache.Service (Redis, memory or layered).
type SignalCache struct {
	c   cache.Service
	ttl time.Duration
}

var _ repository.SignalCache = (*SignalCache)(nil)

// NewSignalCache creates the cache; ttl <= 0 keeps entries until replaced.
func NewSignalCache(c cache.Service, ttl time.Duration) *SignalCache {
	return &SignalCache{c: c, ttl: ttl}
}

func latestKey(symbol string) string {
	return cache.GenerateKey("signal", "latest", strings.ToUpper(symbol))
}

func (s *SignalCache) SetLatest(ctx context.Context, ev models.SignalEvent) error {
	if err := s.c.Set(ctx, latestKey(ev.Signal.Symbol), ev, s.ttl); err != nil {
		return fmt.Errorf("cache latest signal: %w", err)
	}
	return nil
}

// Latest returns models.ErrNotFound when no signal is cached for symbol.
func (s *SignalCache) Latest(ctx context.Context, symbol string) (*models.SignalEvent, error) {
	var ev models.SignalEvent
	if err := s.c.Get(ctx, latestKey(symbol), &ev); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("read latest signal: %w", err)
	}
	return &ev, nil
}
