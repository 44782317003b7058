package pipeline

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionTTL is how long an idle session is kept
const DefaultSessionTTL = time.Hour

// Store keeps sessions in memory, keyed by id. Sessions untouched for longer
// than the TTL are dropped by Prune; their document bytes are zeroed.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates an empty store. A non-positive ttl uses DefaultSessionTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new session
func (st *Store) Create() *Session {
	s := NewSession()
	st.mu.Lock()
	st.sessions[s.ID()] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given id or ErrSessionNotFound.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session, aborting any stage it is running.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	discard(s)
	return nil
}

// Len returns the number of sessions held
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Prune drops idle sessions older than the TTL and returns how many were removed.
// Sessions with a stage in flight are kept.
func (st *Store) Prune() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		s.mu.Lock()
		_, busy := s.processing()
		stale := s.updatedAt.Before(cutoff)
		s.mu.Unlock()
		if stale && !busy {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		discard(s)
	}
	return len(expired)
}

// Run prunes expired sessions every half TTL until ctx is done.
func (st *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(st.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Prune()
		}
	}
}

// discard cancels in-flight work and overwrites the uploaded bytes so the
// document does not linger in memory.
func discard(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.document != nil {
		zeroBytes(s.document.Data)
	}
	s.clear()
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
