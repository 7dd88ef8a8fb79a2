package chat

import (
	"sync"
)

// Registry maps an authenticated identity to its set of live connections.
// One identity may hold several connections at once (multiple devices/tabs).
// All mutation is serialized behind the lock; reads hand out snapshots so a
// slow push never holds the lock across I/O.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[Conn]struct{}),
	}
}

// Connect registers conn under identity, creating the entry if absent.
// Multiple concurrent connections per identity are supported; Connect never
// rejects.
func (r *Registry) Connect(identity string, c Conn) {
	if identity == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byUser[identity]
	if set == nil {
		set = make(map[Conn]struct{})
		r.byUser[identity] = set
	}
	set[c] = struct{}{}
}

// Disconnect removes one connection from the identity's set. Removing the
// last connection deletes the entry entirely. Unknown identity or connection
// is a no-op.
func (r *Registry) Disconnect(identity string, c Conn) {
	if identity == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byUser[identity]
	if set == nil {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.byUser, identity)
	}
}

// DisconnectAll removes every connection for the identity (full logout).
// Idempotent.
func (r *Registry) DisconnectAll(identity string) {
	if identity == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser, identity)
}

// ConnectionsFor returns a snapshot of the identity's live connections. The
// returned slice is owned by the caller; iterating it never races with
// concurrent connect/disconnect.
func (r *Registry) ConnectionsFor(identity string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[identity]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the identity has at least one live connection.
func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[identity]) > 0
}

// Identities returns a snapshot of every identity currently registered.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		out = append(out, id)
	}
	return out
}

// Len returns the total number of live connections across all identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.byUser {
		n += len(set)
	}
	return n
}
