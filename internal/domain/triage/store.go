package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

type storedSession struct {
	session  *Session
	lastSeen time.Time
}

// SessionStore keeps open sessions addressable by id between HTTP requests.
// Sessions untouched for longer than the idle TTL are dropped by Sweep.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*storedSession
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*storedSession),
		now:      time.Now,
	}
}

// Add assigns s a fresh id and stores it.
func (st *SessionStore) Add(s *Session) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()

	st.mu.Lock()
	st.sessions[id] = &storedSession{session: s, lastSeen: st.now()}
	st.mu.Unlock()
	return id
}

// Get returns the session and marks it as recently used.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	ss, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("triage session %s: %w", id, apperr.ErrNotFound)
	}
	ss.lastSeen = st.now()
	return ss.session, nil
}

func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return fmt.Errorf("triage session %s: %w", id, apperr.ErrNotFound)
	}
	delete(st.sessions, id)
	return nil
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for at least ttl and reports how many went.
func (st *SessionStore) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-ttl)
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, ss := range st.sessions {
		if !ss.lastSeen.After(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// ttl or interval disables it.
func (st *SessionStore) RunSweeper(ctx context.Context, ttl, interval time.Duration) error {
	if ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st.Sweep(ttl)
		}
	}
}
