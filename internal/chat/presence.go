package chat

import (
	"context"
	"log"
	"sync"
	"time"
)

// PresenceStore persists the derived online flag; the registry itself is
// the authority for who is online.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string, online bool, lastSeen *time.Time) error
}

// Registry tracks the set of live connection ids per user. A user is online
// iff its set is non-empty. The 0->1 and 1->0 boundary checks happen inside
// the same critical section as the mutation, so exactly one user:status
// broadcast fires per boundary crossing no matter how connections race.
type Registry struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{}

	store PresenceStore
	emit  Emitter
}

func NewRegistry(store PresenceStore, emit Emitter) *Registry {
	return &Registry{
		conns: make(map[string]map[string]struct{}),
		store: store,
		emit:  emit,
	}
}

// Connect records a live connection. On the user's 0->1 transition it
// persists online=true and broadcasts user:status to everyone. Persistence
// and broadcast run outside the lock; only the set mutation is locked.
func (r *Registry) Connect(ctx context.Context, userID, connID string) {
	if !r.add(userID, connID) {
		return
	}
	if err := r.store.SetOnline(ctx, userID, true, nil); err != nil {
		log.Printf("persist online flag for %s: %v", userID, err)
	}
	r.emit.Broadcast(EventUserStatus, statusEvent{UserID: userID, Online: true})
}

// Disconnect removes a connection. On the 1->0 transition it persists
// online=false with a last-seen stamp and broadcasts. Removing an unknown
// connection or user is a no-op, so teardown never errors.
func (r *Registry) Disconnect(ctx context.Context, userID, connID string) {
	if !r.remove(userID, connID) {
		return
	}
	now := time.Now().UTC()
	if err := r.store.SetOnline(ctx, userID, false, &now); err != nil {
		log.Printf("persist online flag for %s: %v", userID, err)
	}
	r.emit.Broadcast(EventUserStatus, statusEvent{UserID: userID, Online: false, LastSeen: &now})
}

// IsOnline reports whether the user has at least one live connection. The
// read is point-in-time; callers racing against connects and disconnects
// get eventual correction through read acknowledgments, not a lock.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[userID]) > 0
}

// ConnectionCount reports the number of live connections for a user.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[userID])
}

// add returns true iff the user's set was empty before.
func (r *Registry) add(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	wasEmpty := len(set) == 0
	set[connID] = struct{}{}
	return wasEmpty
}

// remove returns true iff the set became empty as a result of this call.
func (r *Registry) remove(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		return false
	}
	if _, present := set[connID]; !present {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
		return true
	}
	return false
}
