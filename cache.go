package permit

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// cacheKey identifies one cached decision.
type cacheKey struct {
	UserID   string
	Resource string
	Action   string
}

type cacheEntry struct {
	decision  Decision
	createdAt time.Time
	expiresAt time.Time
	hits      atomic.Int64
}

// expired at the boundary instant too: a ttl of one second is over
// exactly one second after creation.
func (e *cacheEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// DecisionCache memoizes check outcomes per (user, resource, action).
// Lookups never remove entries, even expired ones; reclamation happens
// only in Sweep so the read path stays cheap and lock-light. A
// per-user index keeps invalidation proportional to the user's own
// entries rather than the whole cache.
type DecisionCache struct {
	mu      sync.RWMutex
	maxSize int
	entries map[cacheKey]*cacheEntry
	byUser  map[string]map[cacheKey]struct{}
}

// NewDecisionCache builds a cache bounded to maxSize entries. A
// maxSize of zero or less means unbounded; the bound is enforced by
// Sweep, not by Put.
func NewDecisionCache(maxSize int) *DecisionCache {
	return &DecisionCache{
		maxSize: maxSize,
		entries: make(map[cacheKey]*cacheEntry),
		byUser:  make(map[string]map[cacheKey]struct{}),
	}
}

// Get returns the live cached decision for the key, if any. An
// expired entry is a miss; it stays in place until the next Sweep.
func (c *DecisionCache) Get(userID, resource, action string, now time.Time) (Decision, bool) {
	k := cacheKey{UserID: userID, Resource: resource, Action: action}
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok || e.expired(now) {
		return Decision{}, false
	}
	e.hits.Add(1)
	return e.decision, true
}

// Put stores a decision with the given lifetime, replacing any prior
// entry for the key.
func (c *DecisionCache) Put(userID, resource, action string, d Decision, now time.Time, ttl time.Duration) {
	k := cacheKey{UserID: userID, Resource: resource, Action: action}
	e := &cacheEntry{
		decision:  d,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.mu.Lock()
	c.entries[k] = e
	keys, ok := c.byUser[userID]
	if !ok {
		keys = make(map[cacheKey]struct{})
		c.byUser[userID] = keys
	}
	keys[k] = struct{}{}
	c.mu.Unlock()
}

// InvalidateUser drops every cached decision for the user and reports
// how many entries were removed.
func (c *DecisionCache) InvalidateUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, ok := c.byUser[userID]
	if !ok {
		return 0
	}
	for k := range keys {
		delete(c.entries, k)
	}
	delete(c.byUser, userID)
	return len(keys)
}

// InvalidateAll empties the cache and reports how many entries were
// removed.
func (c *DecisionCache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[cacheKey]*cacheEntry)
	c.byUser = make(map[string]map[cacheKey]struct{})
	return n
}

// Size reports the number of entries currently held, expired ones
// included.
func (c *DecisionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SetMaxSize adjusts the bound enforced by the next Sweep. Zero or
// less means unbounded.
func (c *DecisionCache) SetMaxSize(n int) {
	c.mu.Lock()
	c.maxSize = n
	c.mu.Unlock()
}

// Sweep removes expired entries and, when the cache is over its
// bound, evicts the oldest live entries by creation time until the
// bound holds again. It snapshots candidates under a read lock and
// re-checks identity under the write lock, so concurrent Puts that
// replaced an entry in between are left alone and the write lock is
// never held for the full scan.
func (c *DecisionCache) Sweep(now time.Time) (removed int) {
	type candidate struct {
		key     cacheKey
		entry   *cacheEntry
		created time.Time
	}

	c.mu.RLock()
	maxSize := c.maxSize
	expired := make([]candidate, 0)
	live := make([]candidate, 0, len(c.entries))
	for k, e := range c.entries {
		if e.expired(now) {
			expired = append(expired, candidate{key: k, entry: e})
		} else {
			live = append(live, candidate{key: k, entry: e, created: e.createdAt})
		}
	}
	c.mu.RUnlock()

	victims := expired
	if maxSize > 0 && len(live) > maxSize {
		sort.Slice(live, func(i, j int) bool {
			return live[i].created.Before(live[j].created)
		})
		victims = append(victims, live[:len(live)-maxSize]...)
	}

	if len(victims) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range victims {
		cur, ok := c.entries[v.key]
		if !ok || cur != v.entry {
			continue
		}
		delete(c.entries, v.key)
		if keys, ok := c.byUser[v.key.UserID]; ok {
			delete(keys, v.key)
			if len(keys) == 0 {
				delete(c.byUser, v.key.UserID)
			}
		}
		removed++
	}
	return removed
}
