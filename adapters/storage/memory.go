package storage

import (
	"sync"

	"github.com/snapsolve/backend/domain"
)

// MemoryStorage keeps sessions and app state in process memory. Used by
// tests and as the non-persistent storage backend.
type MemoryStorage struct {
	sessions map[string]*domain.Session
	state    domain.AppState
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*domain.Session),
	}
}

func (m *MemoryStorage) Init() error  { return nil }
func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) CreateSession(session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MemoryStorage) GetSession(sessionID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (m *MemoryStorage) UpdateSession(session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return domain.ErrSessionNotFound
	}
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MemoryStorage) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStorage) ListSessions() ([]*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*domain.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, copySession(session))
	}
	return sessions, nil
}

func (m *MemoryStorage) AddMessage(sessionID string, message *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return domain.ErrSessionNotFound
	}
	session.Messages = append(session.Messages, *message)
	session.LastUpdated = message.Timestamp
	return nil
}

func (m *MemoryStorage) GetMessage(sessionID, messageID string) (*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			msg := session.Messages[i]
			msg.VisualAids = append([]string(nil), msg.VisualAids...)
			return &msg, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (m *MemoryStorage) AttachVisualAids(sessionID, messageID string, aids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return domain.ErrSessionNotFound
	}
	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			session.Messages[i].VisualAids = append([]string(nil), aids...)
			return nil
		}
	}
	return domain.ErrMessageNotFound
}

func (m *MemoryStorage) LoadState() (domain.AppState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

func (m *MemoryStorage) SaveState(state domain.AppState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

func copySession(session *domain.Session) *domain.Session {
	clone := *session
	clone.Messages = make([]domain.Message, len(session.Messages))
	for i, msg := range session.Messages {
		msg.VisualAids = append([]string(nil), msg.VisualAids...)
		clone.Messages[i] = msg
	}
	return &clone
}
