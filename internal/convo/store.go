// Package convo keeps the bounded per-channel conversation state and builds
// the outbound turn sequence for the completion backend.
package convo

import (
	"sync"

	"cyanbot/internal/domain"
)

// DefaultMaxHistory bounds each channel's history length.
const DefaultMaxHistory = 10

// Store owns all per-channel histories. Appends are atomic and histories are
// evicted strictly FIFO by count; there is no TTL and no persistence, state
// lives until process restart. Only user and assistant turns are stored.
type Store struct {
	mu         sync.Mutex
	histories  map[string][]domain.Turn
	maxHistory int
}

// NewStore creates a Store keeping at most maxHistory turns per channel.
// maxHistory <= 0 selects DefaultMaxHistory.
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		histories:  make(map[string][]domain.Turn),
		maxHistory: maxHistory,
	}
}

// Append adds turn to the end of the channel's history, dropping the oldest
// entries when the bound is exceeded.
func (s *Store) Append(channelID string, turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.histories[channelID], turn)
	if len(h) > s.maxHistory {
		h = h[len(h)-s.maxHistory:]
	}
	s.histories[channelID] = h
}

// Snapshot returns a copy of the channel's history in append order. It
// reflects every append made so far, including ones from the same pipeline
// run.
func (s *Store) Snapshot(channelID string) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.histories[channelID]
	out := make([]domain.Turn, len(h))
	copy(out, h)
	return out
}

// Len returns the current history length for a channel.
func (s *Store) Len(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories[channelID])
}
