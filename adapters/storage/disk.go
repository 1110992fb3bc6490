package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/snapsolve/backend/domain"
	"github.com/snapsolve/backend/utils/log"
)

// DiskStorage persists one JSON document per session plus a state.json for
// the global app state, mirroring the memory layout with write-through.
type DiskStorage struct {
	dataDir string
	mem     *MemoryStorage
	mu      sync.Mutex
}

func NewDiskStorage(dataDir string) *DiskStorage {
	return &DiskStorage{
		dataDir: dataDir,
		mem:     NewMemoryStorage(),
	}
}

func (d *DiskStorage) Init() error {
	if err := os.MkdirAll(d.sessionsDir(), 0o755); err != nil {
		return fmt.Errorf("creating storage directories: %w", err)
	}

	entries, err := os.ReadDir(d.sessionsDir())
	if err != nil {
		return fmt.Errorf("reading sessions directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.sessionsDir(), entry.Name()))
		if err != nil {
			log.With(zap.String("file", entry.Name()), zap.Error(err)).Error("reading session file")
			continue
		}
		var session domain.Session
		if err := json.Unmarshal(data, &session); err != nil {
			log.With(zap.String("file", entry.Name()), zap.Error(err)).Error("decoding session file")
			continue
		}
		d.mem.CreateSession(&session)
	}

	if data, err := os.ReadFile(d.statePath()); err == nil {
		var state domain.AppState
		if err := json.Unmarshal(data, &state); err == nil {
			d.mem.SaveState(state)
		}
	}

	log.With(zap.String("data_dir", d.dataDir)).Info("disk storage initialized")
	return nil
}

func (d *DiskStorage) Close() error { return nil }

func (d *DiskStorage) CreateSession(session *domain.Session) error {
	if err := d.mem.CreateSession(session); err != nil {
		return err
	}
	return d.writeSession(session.ID)
}

func (d *DiskStorage) GetSession(sessionID string) (*domain.Session, error) {
	return d.mem.GetSession(sessionID)
}

func (d *DiskStorage) UpdateSession(session *domain.Session) error {
	if err := d.mem.UpdateSession(session); err != nil {
		return err
	}
	return d.writeSession(session.ID)
}

func (d *DiskStorage) DeleteSession(sessionID string) error {
	if err := d.mem.DeleteSession(sessionID); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.Remove(d.sessionPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// ListSessions returns sessions newest-first, the order the history panel
// shows them in.
func (d *DiskStorage) ListSessions() ([]*domain.Session, error) {
	sessions, err := d.mem.ListSessions()
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastUpdated.After(sessions[j].LastUpdated)
	})
	return sessions, nil
}

func (d *DiskStorage) AddMessage(sessionID string, message *domain.Message) error {
	if err := d.mem.AddMessage(sessionID, message); err != nil {
		return err
	}
	return d.writeSession(sessionID)
}

func (d *DiskStorage) GetMessage(sessionID, messageID string) (*domain.Message, error) {
	return d.mem.GetMessage(sessionID, messageID)
}

func (d *DiskStorage) AttachVisualAids(sessionID, messageID string, aids []string) error {
	if err := d.mem.AttachVisualAids(sessionID, messageID, aids); err != nil {
		return err
	}
	return d.writeSession(sessionID)
}

func (d *DiskStorage) LoadState() (domain.AppState, error) {
	return d.mem.LoadState()
}

func (d *DiskStorage) SaveState(state domain.AppState) error {
	if err := d.mem.SaveState(state); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding app state: %w", err)
	}
	if err := os.WriteFile(d.statePath(), data, 0o644); err != nil {
		return fmt.Errorf("writing app state: %w", err)
	}
	return nil
}

func (d *DiskStorage) writeSession(sessionID string) error {
	session, err := d.mem.GetSession(sessionID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.WriteFile(d.sessionPath(sessionID), data, 0o644); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

func (d *DiskStorage) sessionsDir() string { return filepath.Join(d.dataDir, "sessions") }

func (d *DiskStorage) sessionPath(sessionID string) string {
	return filepath.Join(d.sessionsDir(), sessionID+".json")
}

func (d *DiskStorage) statePath() string { return filepath.Join(d.dataDir, "state.json") }
