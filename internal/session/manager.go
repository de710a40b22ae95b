package session

import "sync"

// Manager keeps the live sessions of one process in memory.
type Manager struct {
	defaults Defaults

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(defaults Defaults) *Manager {
	return &Manager{defaults: defaults, sessions: make(map[string]*Session)}
}

func (m *Manager) Create() *Session {
	s := New(m.defaults)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
