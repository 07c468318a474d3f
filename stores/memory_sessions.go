package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oarkflow/permit"
)

// MemorySessionStore tracks session expiry per user in memory. It
// satisfies permit.SessionValidator: a user's session is valid while
// its expiry lies in the future. Expired rows linger until
// CleanupExpiredSessions removes them, which validity checks already
// treat as invalid.
type MemorySessionStore struct {
	mu       sync.RWMutex
	expiries map[string]time.Time
	clock    permit.Clock
}

func NewMemorySessionStore(clock permit.Clock) *MemorySessionStore {
	if clock == nil {
		clock = permit.SystemClock{}
	}
	return &MemorySessionStore{expiries: make(map[string]time.Time), clock: clock}
}

// StartSession opens or refreshes the user's session for ttl
func (s *MemorySessionStore) StartSession(ctx context.Context, userID string, ttl time.Duration) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiries[userID] = s.clock.Now().Add(ttl)
	return nil
}

// EndSession closes the user's session immediately
func (s *MemorySessionStore) EndSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expiries, userID)
	return nil
}

func (s *MemorySessionStore) IsSessionValid(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.expiries[userID]
	if !ok {
		return false, nil
	}
	return s.clock.Now().Before(exp), nil
}

func (s *MemorySessionStore) CleanupExpiredSessions(ctx context.Context) (int, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for userID, exp := range s.expiries {
		if !now.Before(exp) {
			delete(s.expiries, userID)
			removed++
		}
	}
	return removed, nil
}

// Size reports live plus not yet swept sessions
func (s *MemorySessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expiries)
}
