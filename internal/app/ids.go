package app

import (
	"context"
	"fmt"
	"math/rand/v2"
)

const (
	minUserID = 100000
	maxUserID = 999999
)

// IDAllocator hands out random six-digit user ids that are not yet stored.
type IDAllocator struct {
	users UserRepository
	draw  func() int64
}

func NewIDAllocator(users UserRepository) *IDAllocator {
	return &IDAllocator{
		users: users,
		draw: func() int64 {
			return minUserID + rand.Int64N(maxUserID-minUserID+1)
		},
	}
}

// Allocate samples until it finds an unused id. There is no retry bound; with a
// six-digit space and a small user base a collision is rare.
func (a *IDAllocator) Allocate(ctx context.Context) (int64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		id := a.draw()
		exists, err := a.users.IDExists(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("check user id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
}
