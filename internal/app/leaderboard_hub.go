package app

import (
	"context"
	"log"
	"sync"
	"time"

	"quiz-rank-service/internal/domain"
)

// LeaderboardHub fans freshly computed leaderboards out to live subscribers,
// one subscriber set per mode. It implements AttemptObserver so a recorded
// attempt triggers a recompute-and-broadcast for its mode.
type LeaderboardHub struct {
	ranking *RankingService
	topN    int

	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub(ranking *RankingService, topN int) *LeaderboardHub {
	return &LeaderboardHub{
		ranking:     ranking,
		topN:        topN,
		subscribers: make(map[string]map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel that receives leaderboard snapshots for a mode,
// starting with the current one. The caller must invoke the returned cancel
// function to avoid leaks.
func (h *LeaderboardHub) Subscribe(ctx context.Context, mode string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := h.ranking.Leaderboard(ctx, mode, h.topN, nil)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	if h.subscribers[mode] == nil {
		h.subscribers[mode] = make(map[chan domain.Leaderboard]struct{})
	}
	h.subscribers[mode][ch] = struct{}{}
	// Queued before the channel becomes visible to broadcast, so the buffer
	// is empty here and the send cannot block under the lock.
	ch <- initial
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subscribers[mode]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subscribers, mode)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel, nil
}

// AttemptRecorded recomputes the mode's leaderboard and pushes it to every
// subscriber. Recomputation runs off the request path with its own deadline.
func (h *LeaderboardHub) AttemptRecorded(mode string) {
	h.mu.Lock()
	active := len(h.subscribers[mode]) > 0
	h.mu.Unlock()
	if !active {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		lb, err := h.ranking.Leaderboard(ctx, mode, h.topN, nil)
		if err != nil {
			log.Printf("leaderboard recompute for %s failed: %v", mode, err)
			return
		}
		h.broadcast(mode, lb)
	}()
}

func (h *LeaderboardHub) broadcast(mode string, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[mode] {
		select {
		case ch <- lb:
		default:
			// Drop the stale frame so a slow subscriber never blocks the rest.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
