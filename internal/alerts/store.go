// Package alerts keeps a bounded in-memory history of alarm state changes.
package alerts

import (
	"sort"
	"sync"
	"time"

	"airguard/internal/model"
	"airguard/internal/ring"
)

type Store struct {
	mu  sync.RWMutex
	buf *ring.Buffer[model.AlarmTransition]
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{buf: ring.New[model.AlarmTransition](limit)}
}

// Add appends tr. Transitions arrive in time order from the sampling loop,
// which Since relies on.
func (s *Store) Add(tr model.AlarmTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Push(tr)
}

func (s *Store) List(limit int) []model.AlarmTransition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Tail(limit)
}

// Last returns the most recent transition, which tells how long the current
// state has held.
func (s *Store) Last() (model.AlarmTransition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Last()
}

// Since returns transitions at or after ts, oldest first.
func (s *Store) Since(ts time.Time) []model.AlarmTransition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.buf.Len()
	i := sort.Search(n, func(i int) bool {
		return !s.buf.At(i).Timestamp.Before(ts)
	})
	if i == n {
		return []model.AlarmTransition{}
	}
	return s.buf.Tail(n - i)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Clear()
}
