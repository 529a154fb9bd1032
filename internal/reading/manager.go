package reading

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/models"
)

// Manager owns the open sessions.
type Manager struct {
	lib   Library
	narr  Narrator
	prefs func() models.Settings
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. prefs supplies the current reader
// settings (initial font size and narration voice, rate and pitch).
func NewManager(lib Library, narr Narrator, prefs func() models.Settings) *Manager {
	return &Manager{
		lib:      lib,
		narr:     narr,
		prefs:    prefs,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session on a book, resuming at its saved page.
func (m *Manager) Open(bookID string) (*Session, error) {
	b, ok := m.lib.Book(bookID)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	s := newSession(uuid.NewString(), b, m.lib, m.narr, m.prefs, m.now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
	return s, nil
}

// Get looks up an open session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close ends a session and records its position.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// CloseAll ends every session, typically at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
