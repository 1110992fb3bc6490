package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
)

// SessionStore persists conversations. Implementations must be safe for
// concurrent use; the visual-aid stage attaches from its own goroutine.
type SessionStore interface {
	CreateSession(session *Session) error
	GetSession(sessionID string) (*Session, error)
	UpdateSession(session *Session) error
	DeleteSession(sessionID string) error
	ListSessions() ([]*Session, error)

	AddMessage(sessionID string, message *Message) error
	GetMessage(sessionID, messageID string) (*Message, error)
	// AttachVisualAids writes the generated aids onto one message. It fails
	// with ErrSessionNotFound/ErrMessageNotFound when the target is gone,
	// which is how stale async results get dropped.
	AttachVisualAids(sessionID, messageID string, aids []string) error

	Init() error
	Close() error
}

// StateStore persists the global AppState.
type StateStore interface {
	LoadState() (AppState, error)
	SaveState(state AppState) error
}
