// Package session keeps in-flight survey sessions keyed by user id.
// Sessions live in process memory only; a restart drops unfinished surveys.
package session

import (
	"sync"

	"github.com/vldos/telegram-survey-bot/survey/flow"
)

// Store maps user ids to their single active session.
type Store interface {
	// Put stores s as the user's session, replacing any previous one.
	Put(s flow.Session)
	Get(userID int64) (flow.Session, bool)
	// Update atomically replaces the user's session with fn's result.
	// When fn fails the stored session is left as it was.
	Update(userID int64, fn func(flow.Session) (flow.Session, error)) (flow.Session, error)
	Remove(userID int64)
	// RemoveSession drops the user's session only if it is still the one
	// identified by sessionID.
	RemoveSession(userID int64, sessionID string) bool
	Len() int
}

type entry struct {
	mu      sync.Mutex
	s       flow.Session
	removed bool
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*entry
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]*entry)}
}

func (m *memoryStore) Put(s flow.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[s.UserID]; ok {
		old.mu.Lock()
		old.removed = true
		old.mu.Unlock()
	}
	m.sessions[s.UserID] = &entry{s: s.Clone()}
}

func (m *memoryStore) Get(userID int64) (flow.Session, bool) {
	m.mu.RLock()
	e, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return flow.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return flow.Session{}, false
	}
	return e.s.Clone(), true
}

func (m *memoryStore) Update(userID int64, fn func(flow.Session) (flow.Session, error)) (flow.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return flow.Session{}, flow.ErrNoActiveSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return flow.Session{}, flow.ErrNoActiveSession
	}
	next, err := fn(e.s.Clone())
	if err != nil {
		return e.s.Clone(), err
	}
	e.s = next.Clone()
	return next, nil
}

func (m *memoryStore) Remove(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[userID]; ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
		delete(m.sessions, userID)
	}
}

func (m *memoryStore) RemoveSession(userID int64, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.ID != sessionID {
		return false
	}
	e.removed = true
	delete(m.sessions, userID)
	return true
}

func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
