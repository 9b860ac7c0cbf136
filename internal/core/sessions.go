package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore keeps the open sessions in memory. Removing a session, by
// Delete or by idle expiry, closes it.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	objects  *ObjectStore
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore returns a store whose sessions expire after ttl without use.
func NewSessionStore(objects *ObjectStore, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		objects:  objects,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a new session with a random id.
func (st *SessionStore) Create() *Session {
	s := NewSession(uuid.NewString(), st.objects)
	s.touch(st.now())
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given id and marks it used.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.touch(st.now())
	return s, true
}

// GetOrCreate returns the session with the given id, opening a new one when
// the id is unknown. The boolean reports whether a session was created.
func (st *SessionStore) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if s, ok := st.Get(id); ok {
			return s, false
		}
	}
	return st.Create(), true
}

// Delete closes and removes a session. It reports whether the id was known.
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were removed.
func (st *SessionStore) Sweep() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			expired = append(expired, s)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Len returns the number of open sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Close closes every open session.
func (st *SessionStore) Close() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
