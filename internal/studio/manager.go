package studio

import (
	"sync"

	"studio/internal/domain"

	"github.com/google/uuid"
)

// Manager is the in-memory registry of live editing sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: map[string]*Session{}}
}

// Create allocates a new session with a fresh ID.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString())
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Get returns the live session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// Put registers a rehydrated session, replacing any live one with the same
// ID.
func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
}

// Remove drops a session from the registry. In-flight generation callbacks
// against it degrade to stale-target no-ops.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
