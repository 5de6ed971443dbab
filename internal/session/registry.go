package session

import (
	"sort"
	"sync"

	"github.com/arwic/dominion/internal/protocol"
	"go.uber.org/multierr"
)

// Registry tracks the live sessions of one match. It is safe for concurrent
// use; iteration always works on a snapshot.
type Registry struct {
	mu       sync.RWMutex
	byPeer   map[uint64]*Session
	nextID   int
	hostPeer uint64
}

func NewRegistry() *Registry {
	return &Registry{byPeer: make(map[uint64]*Session), nextID: 1}
}

// Create registers a session for peer. Instance IDs are never reused. The
// first session becomes host.
func (r *Registry) Create(peer Peer, name string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{InstanceID: r.nextID, Peer: peer, Name: name, IsHost: len(r.byPeer) == 0}
	r.nextID++
	r.byPeer[peer.ID()] = s
	if s.IsHost {
		r.hostPeer = peer.ID()
	}
	return s
}

// Remove drops the session owned by peerID. When the host leaves, the oldest
// remaining session is promoted and returned as newHost.
func (r *Registry) Remove(peerID uint64) (removed, newHost *Session, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, ok = r.byPeer[peerID]
	if !ok {
		return nil, nil, false
	}
	delete(r.byPeer, peerID)
	if removed.IsHost {
		removed.IsHost = false
		r.hostPeer = 0
		for _, s := range r.sortedLocked() {
			s.IsHost = true
			r.hostPeer = s.Peer.ID()
			newHost = s
			break
		}
	}
	return removed, newHost, true
}

func (r *Registry) ByPeer(peerID uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byPeer[peerID]
	return s, ok
}

func (r *Registry) ByInstance(id int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byPeer {
		if s.InstanceID == id {
			return s, true
		}
	}
	return nil, false
}

func (r *Registry) Host() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byPeer[r.hostPeer]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPeer)
}

// Snapshot returns the live sessions ordered by instance ID.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

func (r *Registry) sortedLocked() []*Session {
	out := make([]*Session, 0, len(r.byPeer))
	for _, s := range r.byPeer {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// SetEnded records a session's turn flag and reports whether it changed.
func (r *Registry) SetEnded(peerID uint64, ended bool) (changed, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byPeer[peerID]
	if !ok {
		return false, false
	}
	changed = s.EndedTurn != ended
	s.EndedTurn = ended
	return changed, true
}

// AllEnded is evaluated at one consistent instant. An empty registry never
// agrees to end a turn.
func (r *Registry) AllEnded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.byPeer) == 0 {
		return false
	}
	for _, s := range r.byPeer {
		if !s.EndedTurn {
			return false
		}
	}
	return true
}

func (r *Registry) SetAllEnded(ended bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byPeer {
		s.EndedTurn = ended
	}
}

// Broadcast sends f to every session in the snapshot and collects failures.
func (r *Registry) Broadcast(f protocol.Frame) error {
	var errs error
	for _, s := range r.Snapshot() {
		errs = multierr.Append(errs, s.Peer.Send(f))
	}
	return errs
}

// Update applies fn to the session owned by peerID under the registry lock.
func (r *Registry) Update(peerID uint64, fn func(*Session)) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byPeer[peerID]
	if !ok {
		return nil, false
	}
	fn(s)
	return s, true
}
