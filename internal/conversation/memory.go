package conversation

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

type history struct {
	turns      []Turn
	lastActive time.Time
}

// InMemoryStore is a concurrency-safe, in-memory Store. Histories live for
// the lifetime of the process unless pruned, purged, or evicted by the
// user cap.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]*history

	maxTurns int

	// maxUsers caps the number of users kept. When a new user would exceed
	// it, the least recently active user is evicted. Zero means unlimited.
	maxUsers int

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithMaxTurns sets the per-user history bound. Values below 1 keep the
// default.
func WithMaxTurns(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithMaxUsers caps the number of users held in memory. Zero means unlimited.
func WithMaxUsers(n int) Option {
	return func(s *InMemoryStore) {
		if n >= 0 {
			s.maxUsers = n
		}
	}
}

// NewInMemoryStore creates a ready-to-use in-memory store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		users:    make(map[string]*history),
		maxTurns: DefaultMaxTurns,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxTurns returns the per-user history bound.
func (s *InMemoryStore) MaxTurns() int { return s.maxTurns }

// Append implements Store.
func (s *InMemoryStore) Append(userID string, turn Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.users[userID]
	if !ok {
		s.evictForNewUser()
		h = &history{}
		s.users[userID] = h
	}
	h.turns = append(h.turns, turn)
	h.turns = keepLast(h.turns, s.maxTurns)
	h.lastActive = s.now()
	return nil
}

// evictForNewUser drops the least recently active user when the cap is
// reached. Caller must hold s.mu.
func (s *InMemoryStore) evictForNewUser() {
	if s.maxUsers <= 0 || len(s.users) < s.maxUsers {
		return
	}
	var (
		oldestID string
		oldest   time.Time
		found    bool
	)
	for id, h := range s.users {
		if !found || h.lastActive.Before(oldest) {
			oldestID, oldest, found = id, h.lastActive, true
		}
	}
	if found {
		delete(s.users, oldestID)
	}
}

// Truncate implements Store.
func (s *InMemoryStore) Truncate(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.users[userID]; ok {
		h.turns = keepLast(h.turns, s.maxTurns)
	}
	return nil
}

// Get implements Store. The returned slice is a copy.
func (s *InMemoryStore) Get(userID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.users[userID]
	if !ok || len(h.turns) == 0 {
		return nil, nil
	}
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out, nil
}

// Purge implements Store.
func (s *InMemoryStore) Purge(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

// Prune implements Store.
func (s *InMemoryStore) Prune(maxIdle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pruned := 0
	for id, h := range s.users {
		if now.Sub(h.lastActive) > maxIdle {
			delete(s.users, id)
			pruned++
		}
	}
	return pruned, nil
}

// Users implements Store.
func (s *InMemoryStore) Users() ([]UserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]UserInfo, 0, len(s.users))
	for id, h := range s.users {
		out = append(out, UserInfo{UserID: id, Turns: len(h.turns), LastActive: h.lastActive})
	}
	slices.SortFunc(out, func(a, b UserInfo) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, nil
}

// Len implements Store.
func (s *InMemoryStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

var _ Store = (*InMemoryStore)(nil)
