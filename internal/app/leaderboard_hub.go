package app

import (
	"sync"

	"quizzy-service/internal/domain"
)

// LeaderboardHub fans leaderboard snapshots out to live subscribers.
type LeaderboardHub struct {
	mu          sync.Mutex
	subscribers map[chan []domain.LeaderboardEntry]struct{}
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{subscribers: make(map[chan []domain.LeaderboardEntry]struct{})}
}

// Subscribe returns a channel of snapshots. The caller must invoke cancel to avoid leaks.
func (h *LeaderboardHub) Subscribe() (<-chan []domain.LeaderboardEntry, func()) {
	ch := make(chan []domain.LeaderboardEntry, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// HasSubscribers reports whether publishing would reach anyone.
func (h *LeaderboardHub) HasSubscribers() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers) > 0
}

// Publish delivers entries to every subscriber without blocking. A subscriber whose
// buffer is full loses its oldest pending snapshot.
func (h *LeaderboardHub) Publish(entries []domain.LeaderboardEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- entries:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- entries
		}
	}
}
