package memory

import (
	"context"
	"sync"
	"time"

	"quizzy-service/internal/oauth"
)

// StateStore is an in-memory implementation of oauth.StateStore for single-instance runs.
type StateStore struct {
	mu     sync.Mutex
	now    func() time.Time
	states map[string]time.Time
}

func NewStateStore() *StateStore {
	return NewStateStoreWithClock(time.Now)
}

// NewStateStoreWithClock is test-only for deterministic expiry.
func NewStateStoreWithClock(now func() time.Time) *StateStore {
	return &StateStore{now: now, states: make(map[string]time.Time)}
}

func (s *StateStore) Save(_ context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, expiresAt := range s.states {
		if !expiresAt.After(now) {
			delete(s.states, key)
		}
	}
	s.states[state] = now.Add(ttl)
	return nil
}

func (s *StateStore) Consume(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.states[state]
	if !ok {
		return oauth.ErrInvalidState
	}
	delete(s.states, state)
	if !expiresAt.After(s.now()) {
		return oauth.ErrInvalidState
	}
	return nil
}
