package session

import (
	"sync"
	"time"
)

// Store keeps sessions in memory, keyed by id. Nothing is persisted.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating a new one when id is unknown.
// The boolean reports whether a new session was created.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok && id != "" {
		return s, false
	}
	s := New()
	st.sessions[s.ID] = s
	return s, true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than ttl and returns how many were removed.
func (st *Store) Sweep(ttl time.Duration) int {
	now := time.Now()
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if s.idleSince(now) > ttl {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}
