package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizzy-service/internal/oauth"
)

// StateStore keeps OAuth states in Redis so any instance can serve the callback.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

func (s *StateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(state), "1", ttl).Err()
}

// Consume uses GETDEL so a state can be redeemed only once.
func (s *StateStore) Consume(ctx context.Context, state string) error {
	_, err := s.client.GetDel(ctx, s.key(state)).Result()
	if isMiss(err) {
		return oauth.ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}
	return nil
}

func (s *StateStore) key(state string) string {
	return "oauth:state:" + state
}
