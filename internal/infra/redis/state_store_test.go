package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quizzy-service/internal/oauth"
)

func TestStateStoreConsumesOnce(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewStateStore(newClient(mr))
	ctx := context.Background()

	if err := store.Save(ctx, "abc", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("oauth:state:abc") {
		t.Fatalf("expected redis key to be set")
	}
	if err := store.Consume(ctx, "abc"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := store.Consume(ctx, "abc"); !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("expected invalid state on reuse, got %v", err)
	}
}

func TestStateStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewStateStore(newClient(mr))
	ctx := context.Background()

	if err := store.Save(ctx, "late", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if err := store.Consume(ctx, "late"); !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("expected invalid state after ttl, got %v", err)
	}
}
