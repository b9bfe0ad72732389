package session

import (
	"sync"
	"time"

	"github.com/blueplan/diary-go/internal/diary/types"
	"github.com/google/uuid"
)

// Store keeps live sessions in memory; a session expires after ttl without
// activity.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{sessions: map[string]*Session{}, ttl: ttl, now: time.Now}
}

// WithClock swaps the time source; tests use it.
func (st *Store) WithClock(now func() time.Time) *Store {
	st.now = now
	return st
}

func (st *Store) Create() *Session {
	s := New(uuid.NewString(), st.now())
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, types.Errorf(types.KindSessionNotFound, "session.get", "id=%s", id)
	}
	s.Touch(st.now())
	return s, nil
}

func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// Sweep drops sessions idle for longer than ttl and returns their IDs.
func (st *Store) Sweep() []string {
	if st.ttl <= 0 {
		return nil
	}
	cutoff := st.now().Add(-st.ttl)
	st.mu.Lock()
	defer st.mu.Unlock()
	var expired []string
	for id, s := range st.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, id)
			delete(st.sessions, id)
		}
	}
	return expired
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
