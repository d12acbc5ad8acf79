package conversation

import (
	"context"
	"sync"
)

// LaneLock serializes work per user id. Requests for the same user run one
// at a time; requests for different users run concurrently. A request
// waiting for its lane gives up when its context ends.
//
// A global mutex protects the lane map and is held only long enough to
// look up or create a lane.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// slot holds a token while the lane is owned. refs counts goroutines
// holding or waiting on the lane. stale marks lanes eligible for removal
// once refs drops to zero.
type lane struct {
	slot  chan struct{}
	refs  int
	stale bool
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{
		lanes: make(map[string]*lane),
	}
}

// Acquire takes the lane for userID, creating it if needed, and blocks
// until the lane is free or ctx is done. On success the caller must call
// Release with the same id. On failure it returns ctx.Err() and holds
// nothing.
func (l *LaneLock) Acquire(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	ln, ok := l.lanes[userID]
	if !ok {
		ln = &lane{slot: make(chan struct{}, 1)}
		l.lanes[userID] = ln
	}
	ln.refs++
	ln.stale = false
	l.mu.Unlock()

	// Wait outside the global mutex so other users are not blocked.
	select {
	case ln.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(userID, ln)
		return ctx.Err()
	}
}

// Release frees the lane for userID.
func (l *LaneLock) Release(userID string) {
	l.mu.Lock()
	ln, ok := l.lanes[userID]
	l.mu.Unlock()
	if !ok {
		return
	}
	l.unref(userID, ln)

	select {
	case <-ln.slot:
	default:
	}
}

func (l *LaneLock) unref(userID string, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.refs--
	if ln.refs == 0 && ln.stale && l.lanes[userID] == ln {
		delete(l.lanes, userID)
	}
}

// Cleanup drops lanes for users not present in active. Lanes still in use
// are marked and removed on their last Release.
func (l *LaneLock) Cleanup(active map[string]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, ln := range l.lanes {
		if _, ok := active[id]; !ok {
			ln.stale = true
			if ln.refs == 0 {
				delete(l.lanes, id)
			}
			continue
		}
		ln.stale = false
	}
}

// Len returns the number of lanes currently tracked.
func (l *LaneLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

// ActiveUsers returns the ids of every user in store, for use with
// LaneLock.Cleanup.
func ActiveUsers(store Store) (map[string]struct{}, error) {
	users, err := store.Users()
	if err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(users))
	for _, u := range users {
		active[u.UserID] = struct{}{}
	}
	return active, nil
}
