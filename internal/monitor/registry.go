// internal/monitor/registry.go
package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultWatchTTL is how long a newly detected token is watched.
const DefaultWatchTTL = 30 * time.Minute

// WatchedToken is the single token currently being monitored.
type WatchedToken struct {
	ID        string
	Address   string
	Symbol    string
	StartedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the watch deadline has passed at now.
func (w WatchedToken) Expired(now time.Time) bool {
	return now.After(w.ExpiresAt)
}

// Registry holds at most one watched token and the last seen wallet holding.
// Every mutation replaces the whole record under the mutex, readers only ever
// get copies.
type Registry struct {
	mu       sync.Mutex
	current  *WatchedToken
	lastSeen string
	now      func() time.Time
}

// NewRegistry creates an empty registry. now may be nil.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{now: now}
}

// StartWatch replaces any existing watch with a new one expiring after ttl.
func (r *Registry) StartWatch(address, symbol string, ttl time.Duration) WatchedToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(address, symbol, ttl)
}

// StartIfNew starts a watch on address only when it differs from the last
// seen holding. Comparing, updating the last seen holding and replacing the
// watch happen under one lock, so concurrent checks cannot leave the watch
// and LastSeen pointing at different tokens.
func (r *Registry) StartIfNew(address, symbol string, ttl time.Duration) (WatchedToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if address == r.lastSeen {
		return WatchedToken{}, false
	}
	r.lastSeen = address
	return r.startLocked(address, symbol, ttl), true
}

func (r *Registry) startLocked(address, symbol string, ttl time.Duration) WatchedToken {
	started := r.now()
	r.current = &WatchedToken{
		ID:        uuid.NewString(),
		Address:   address,
		Symbol:    symbol,
		StartedAt: started,
		ExpiresAt: started.Add(ttl),
	}
	return *r.current
}

// ClearWatch drops the current watch, if any.
func (r *Registry) ClearWatch() {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
}

// CurrentWatch returns a snapshot of the current watch.
func (r *Registry) CurrentWatch() (WatchedToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return WatchedToken{}, false
	}
	return *r.current, true
}

// Release clears the watch only if it is still the one identified by id.
// It returns false when the watch was cleared or superseded in the meantime.
func (r *Registry) Release(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || r.current.ID != id {
		return false
	}
	r.current = nil
	return true
}

// LastSeen returns the address of the most recently observed holding.
func (r *Registry) LastSeen() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}
