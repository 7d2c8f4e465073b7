package api

import (
	"sync"

	"github.com/jmcleod/tablehand/internal/clock"
)

// MemorySessionStore is a thread-safe in-memory SessionStore.
// Sessions are lost on server restart.
type MemorySessionStore struct {
	mu    sync.Mutex
	data  map[string]RefreshSession
	clock clock.Clock
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an in-memory session store. A nil clock
// uses the wall clock.
func NewMemorySessionStore(clk clock.Clock) *MemorySessionStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemorySessionStore{
		data:  make(map[string]RefreshSession),
		clock: clk,
	}
}

func (s *MemorySessionStore) Get(token string) (RefreshSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(token)
}

func (s *MemorySessionStore) liveLocked(token string) (RefreshSession, bool) {
	session, ok := s.data[token]
	if !ok {
		return RefreshSession{}, false
	}
	if s.clock.Now().After(session.ExpiresAt) {
		delete(s.data, token)
		return RefreshSession{}, false
	}
	return session, true
}

func (s *MemorySessionStore) Put(token string, session RefreshSession) {
	s.mu.Lock()
	s.data[token] = session
	s.mu.Unlock()
}

func (s *MemorySessionStore) Take(token string) (RefreshSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.liveLocked(token)
	delete(s.data, token)
	return session, ok
}

func (s *MemorySessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.data, token)
	s.mu.Unlock()
}
