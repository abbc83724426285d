package session

import (
	"sync"
)

// Registry tracks the sessions of active conversations, keyed by conversation id.
// A view creates a session when it mounts and removes it when it unmounts.
type Registry struct {
	relay Relay
	cfg   Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose sessions share relay and cfg.
func NewRegistry(relay Relay, cfg Config) *Registry {
	return &Registry{
		relay:    relay,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session and registers it.
func (r *Registry) Create() *Session {
	s := New(r.relay, r.cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ConversationID()] = s
	return s
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove unregisters the session and closes its subscriptions.
// Reports whether a session was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
