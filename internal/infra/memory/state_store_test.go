package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizzy-service/internal/oauth"
)

func TestStateStoreConsumesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()

	if err := store.Save(ctx, "s1", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Consume(ctx, "s1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := store.Consume(ctx, "s1"); !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("second consume should fail, got %v", err)
	}
}

func TestStateStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStateStoreWithClock(func() time.Time { return now })

	_ = store.Save(ctx, "old", time.Minute)
	now = now.Add(2 * time.Minute)
	if err := store.Consume(ctx, "old"); !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("expired state accepted: %v", err)
	}

	_ = store.Save(ctx, "a", time.Minute)
	now = now.Add(2 * time.Minute)
	_ = store.Save(ctx, "b", time.Minute)
	if len(store.states) != 1 {
		t.Fatalf("expired states should be swept on save, have %d", len(store.states))
	}
}
