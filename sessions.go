package permit

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// SessionValidator answers whether a user currently holds a valid
// session. It is the engine's only external collaborator on the check
// path; faults from it surface as errors, never as denials.
type SessionValidator interface {
	IsSessionValid(ctx context.Context, userID string) (bool, error)
	CleanupExpiredSessions(ctx context.Context) (int, error)
}

// SessionCacheConfig tunes the admission cache behind
// CachedSessionValidator. Zero values fall back to defaults sized for
// tens of thousands of users.
type SessionCacheConfig struct {
	NumCounters int64 `json:"num_counters" yaml:"num_counters"`
	MaxCost     int64 `json:"max_cost" yaml:"max_cost"`
	BufferItems int64 `json:"buffer_items" yaml:"buffer_items"`
}

func (c SessionCacheConfig) withDefaults() SessionCacheConfig {
	if c.NumCounters <= 0 {
		c.NumCounters = 100_000
	}
	if c.MaxCost <= 0 {
		c.MaxCost = 10_000
	}
	if c.BufferItems <= 0 {
		c.BufferItems = 64
	}
	return c
}

// CachedSessionValidator memoizes verdicts from an inner validator
// for a bounded time, so hot users do not hit the session backend on
// every check. Errors are never memoized.
type CachedSessionValidator struct {
	inner SessionValidator
	ttl   time.Duration
	cache *ristretto.Cache
}

func NewCachedSessionValidator(inner SessionValidator, ttl time.Duration, cfg SessionCacheConfig) (*CachedSessionValidator, error) {
	cfg = cfg.withDefaults()
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &CachedSessionValidator{
		inner: inner,
		ttl:   ttl,
		cache: cache,
	}, nil
}

func (v *CachedSessionValidator) IsSessionValid(ctx context.Context, userID string) (bool, error) {
	if cached, ok := v.cache.Get(userID); ok {
		if valid, ok := cached.(bool); ok {
			return valid, nil
		}
	}
	valid, err := v.inner.IsSessionValid(ctx, userID)
	if err != nil {
		return false, err
	}
	v.cache.SetWithTTL(userID, valid, 1, v.ttl)
	return valid, nil
}

// CleanupExpiredSessions forwards to the inner validator; memoized
// verdicts age out on their own TTL.
func (v *CachedSessionValidator) CleanupExpiredSessions(ctx context.Context) (int, error) {
	return v.inner.CleanupExpiredSessions(ctx)
}

// Invalidate drops the memoized verdict for one user, forcing the
// next check through to the inner validator.
func (v *CachedSessionValidator) Invalidate(userID string) {
	v.cache.Del(userID)
}

// Wait blocks until pending memo writes are visible. Only needed when
// a caller must observe a just-stored verdict, as tests do.
func (v *CachedSessionValidator) Wait() {
	v.cache.Wait()
}

func (v *CachedSessionValidator) Close() {
	v.cache.Close()
}
