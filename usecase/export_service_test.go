package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapsolve/backend/adapters/storage"
	"github.com/snapsolve/backend/domain"
)

func seedMessage(t *testing.T, store *storage.MemoryStorage, content string) (string, string) {
	t.Helper()

	session := &domain.Session{ID: uuid.NewString(), Title: "Test", GradeLevel: domain.GradeHighSchool}
	require.NoError(t, store.CreateSession(session))

	msg := &domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
	require.NoError(t, store.AddMessage(session.ID, msg))
	return session.ID, msg.ID
}

func TestExportWritesPDF(t *testing.T) {
	store := storage.NewMemoryStorage()
	outputDir := t.TempDir()
	svc := NewExportService(store, outputDir)

	content := "=== SUBJECT ===\nMathematics | Confidence: 95%\n" +
		"=== STEP-BY-STEP SOLUTION ===\n1. Add one.\n$$ x = 2 $$\n" +
		"=== FINAL ANSWER ===\nx = 2\n"
	sessionID, messageID := seedMessage(t, store, content)

	path, err := svc.Export(context.Background(), sessionID, messageID)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outputDir, "SnapSolve_Solution_"+messageID+".pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"), "output must be a PDF document")
}

func TestExportCleansStaging(t *testing.T) {
	store := storage.NewMemoryStorage()
	outputDir := t.TempDir()
	svc := NewExportService(store, outputDir)

	sessionID, messageID := seedMessage(t, store, "=== FINAL ANSWER ===\nok")

	_, err := svc.Export(context.Background(), sessionID, messageID)
	require.NoError(t, err)

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsDir())
}

func TestExportRejectsConcurrentRequests(t *testing.T) {
	store := storage.NewMemoryStorage()
	svc := NewExportService(store, t.TempDir())

	sessionID, messageID := seedMessage(t, store, "=== FINAL ANSWER ===\nok")

	svc.busy.Store(true)
	_, err := svc.Export(context.Background(), sessionID, messageID)
	assert.ErrorIs(t, err, ErrExportInFlight)

	// Once the holder finishes the next export goes through.
	svc.busy.Store(false)
	_, err = svc.Export(context.Background(), sessionID, messageID)
	assert.NoError(t, err)
}

func TestExportUnknownMessageLeavesNoFile(t *testing.T) {
	store := storage.NewMemoryStorage()
	outputDir := t.TempDir()
	svc := NewExportService(store, outputDir)

	sessionID, _ := seedMessage(t, store, "=== FINAL ANSWER ===\nok")

	_, err := svc.Export(context.Background(), sessionID, "missing")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The busy flag is released on the failure path.
	assert.False(t, svc.busy.Load())
}

func TestExportSkipsUnloadableImages(t *testing.T) {
	store := storage.NewMemoryStorage()
	svc := NewExportService(store, t.TempDir())

	session := &domain.Session{ID: uuid.NewString(), GradeLevel: domain.GradeHighSchool}
	require.NoError(t, store.CreateSession(session))
	msg := &domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   "=== FINAL ANSWER ===\nok",
		Timestamp: time.Now(),
	}
	require.NoError(t, store.AddMessage(session.ID, msg))
	require.NoError(t, store.AttachVisualAids(session.ID, msg.ID, []string{"data:image/png;base64,!!!notbase64!!!"}))

	path, err := svc.Export(context.Background(), session.ID, msg.ID)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
