package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messagebroker "github.com/snapsolve/backend/adapters/message_broker"
	"github.com/snapsolve/backend/adapters/storage"
	"github.com/snapsolve/backend/domain"
)

type stubSolver struct {
	reply string
	calls atomic.Int32
	last  domain.SolveRequest
}

func (s *stubSolver) Solve(ctx context.Context, req domain.SolveRequest) string {
	s.calls.Add(1)
	s.last = req
	return s.reply
}

type stubAidGenerator struct {
	generate func(ctx context.Context, prompt string) (string, error)
}

func (g *stubAidGenerator) GenerateVisualAid(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt)
}

func newTestService(t *testing.T, solver domain.Solver, aids domain.VisualAidGenerator) (*ChatService, *storage.MemoryStorage, *messagebroker.ChannelMessageBroker) {
	t.Helper()

	store := storage.NewMemoryStorage()
	broker := messagebroker.NewChannelMessageBroker()
	t.Cleanup(func() { broker.Close() })

	if aids == nil {
		aids = &stubAidGenerator{generate: func(ctx context.Context, prompt string) (string, error) {
			return "", fmt.Errorf("no generator configured")
		}}
	}

	svc := NewChatService(solver, aids, store, store, broker, 3)
	return svc, store, broker
}

func TestSendAppendsBothMessages(t *testing.T) {
	solver := &stubSolver{reply: "=== FINAL ANSWER ===\nx = 2"}
	svc, store, _ := newTestService(t, solver, nil)

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	result, err := svc.Send(context.Background(), session.ID, SendInput{
		Prompt:     "Solve x + 1 = 3",
		GradeLevel: domain.GradeHighSchool,
		Mode:       domain.ModeNormal,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleUser, result.UserMessage.Role)
	assert.Equal(t, "Solve x + 1 = 3", result.UserMessage.Content)
	assert.Equal(t, domain.RoleAssistant, result.AssistantMessage.Role)
	assert.Equal(t, solver.reply, result.AssistantMessage.Content)
	assert.Zero(t, result.VisualAidsQueued)

	stored, err := store.GetSession(session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "Solve x + 1 = 3", stored.Title)
}

func TestSendEmptyInputRejected(t *testing.T) {
	solver := &stubSolver{reply: "unused"}
	svc, _, _ := newTestService(t, solver, nil)

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), session.ID, SendInput{Prompt: "   "})
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, solver.calls.Load())
}

func TestSendMediaOnlyUsesDefaultPrompt(t *testing.T) {
	solver := &stubSolver{reply: "=== FINAL ANSWER ===\nok"}
	svc, _, _ := newTestService(t, solver, nil)

	session, err := svc.NewSession(domain.GradeCollege)
	require.NoError(t, err)

	result, err := svc.Send(context.Background(), session.ID, SendInput{
		Media: &domain.Media{Data: "data:image/png;base64,aGk=", MIMEType: "image/png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Analyze this document.", result.UserMessage.Content)
	assert.NotEmpty(t, result.UserMessage.Image)
}

func TestSendUnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t, &stubSolver{reply: "x"}, nil)

	_, err := svc.Send(context.Background(), "missing", SendInput{Prompt: "hi"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestDailyLimitBlocksBeforeSolver(t *testing.T) {
	solver := &stubSolver{reply: "unused"}
	svc, store, _ := newTestService(t, solver, nil)

	today := time.Now().Format("2006-01-02")
	require.NoError(t, store.SaveState(domain.AppState{DailyUsageCount: 3, LastUsageDate: today}))

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), session.ID, SendInput{Prompt: "one more"})
	assert.ErrorIs(t, err, ErrDailyLimitReached)
	assert.Zero(t, solver.calls.Load(), "solver must not be called once the limit is hit")
}

func TestDailyLimitResetsOnNewDay(t *testing.T) {
	solver := &stubSolver{reply: "=== FINAL ANSWER ===\nok"}
	svc, store, _ := newTestService(t, solver, nil)

	require.NoError(t, store.SaveState(domain.AppState{DailyUsageCount: 3, LastUsageDate: "2020-01-01"}))

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), session.ID, SendInput{Prompt: "fresh day"})
	require.NoError(t, err)

	state, err := store.LoadState()
	require.NoError(t, err)
	assert.Equal(t, 1, state.DailyUsageCount)
	assert.Equal(t, time.Now().Format("2006-01-02"), state.LastUsageDate)
}

func TestProBypassesLimit(t *testing.T) {
	solver := &stubSolver{reply: "=== FINAL ANSWER ===\nok"}
	svc, store, _ := newTestService(t, solver, nil)

	today := time.Now().Format("2006-01-02")
	require.NoError(t, store.SaveState(domain.AppState{Pro: true, DailyUsageCount: 50, LastUsageDate: today}))

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), session.ID, SendInput{Prompt: "pro user"})
	assert.NoError(t, err)
}

func TestVisualAidsGeneratedConcurrentlyInOrder(t *testing.T) {
	reply := "=== FINAL ANSWER ===\nx = 2\n" +
		"=== VISUAL AID PROMPTS ===\n" +
		"PROMPT: first\nPROMPT: second\nPROMPT: third\n"
	solver := &stubSolver{reply: reply}

	aids := &stubAidGenerator{generate: func(ctx context.Context, prompt string) (string, error) {
		if prompt == "second" {
			return "", fmt.Errorf("model refused")
		}
		return "data:image/png;base64," + prompt, nil
	}}
	svc, store, broker := newTestService(t, solver, aids)

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	events, err := broker.Subscribe(context.Background(), domain.VisualAidTopic, session.ID)
	require.NoError(t, err)

	result, err := svc.Send(context.Background(), session.ID, SendInput{Prompt: "draw it"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.VisualAidsQueued)

	select {
	case msg := <-events:
		var event domain.VisualAidEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, session.ID, event.SessionID)
		assert.Equal(t, result.AssistantMessage.ID, event.MessageID)
		// The failed directive is dropped; survivors keep their order.
		assert.Equal(t, []string{
			"data:image/png;base64,first",
			"data:image/png;base64,third",
		}, event.VisualAids)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for visual aid event")
	}

	stored, err := store.GetMessage(session.ID, result.AssistantMessage.ID)
	require.NoError(t, err)
	assert.Len(t, stored.VisualAids, 2)
}

func TestVisualAidsDroppedForDeletedSession(t *testing.T) {
	reply := "=== FINAL ANSWER ===\nx = 2\n" +
		"=== VISUAL AID PROMPTS ===\nPROMPT: a diagram\n"
	solver := &stubSolver{reply: reply}

	deleted := make(chan struct{})
	done := make(chan struct{})
	aids := &stubAidGenerator{generate: func(ctx context.Context, prompt string) (string, error) {
		<-deleted
		defer close(done)
		return "data:image/png;base64,late", nil
	}}
	svc, store, broker := newTestService(t, solver, aids)

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	events, err := broker.Subscribe(context.Background(), domain.VisualAidTopic, session.ID)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), session.ID, SendInput{Prompt: "draw it"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSession(session.ID))
	close(deleted)
	<-done

	// Give the attach path a moment to run; it must drop silently.
	select {
	case msg := <-events:
		t.Fatalf("unexpected visual aid event for deleted session: %s", msg.Payload)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSuppressedDirectivesQueueNothing(t *testing.T) {
	reply := "=== FINAL ANSWER ===\nx = 2\n" +
		"=== VISUAL AID PROMPTS ===\nPROMPT: None\nPROMPT: a diagram\n"
	solver := &stubSolver{reply: reply}
	svc, _, _ := newTestService(t, solver, nil)

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	result, err := svc.Send(context.Background(), session.ID, SendInput{Prompt: "no pictures"})
	require.NoError(t, err)
	assert.Zero(t, result.VisualAidsQueued)
}

func TestHistoryBounded(t *testing.T) {
	solver := &stubSolver{reply: "=== FINAL ANSWER ===\nok"}
	svc, store, _ := newTestService(t, solver, nil)

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = svc.Send(context.Background(), session.ID, SendInput{Prompt: fmt.Sprintf("turn %d", i)})
		require.NoError(t, err)
	}

	assert.Len(t, solver.last.History, domain.HistoryWindow)

	stored, err := store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 10)
}

func TestFinalAnswerText(t *testing.T) {
	reply := "=== STEP-BY-STEP SOLUTION ===\n1. Add.\n=== FINAL ANSWER ===\nx = 2\n\nBoth roots check out.\n"
	solver := &stubSolver{reply: reply}
	svc, _, _ := newTestService(t, solver, nil)

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)
	result, err := svc.Send(context.Background(), session.ID, SendInput{Prompt: "solve"})
	require.NoError(t, err)

	text, err := svc.FinalAnswerText(session.ID, result.AssistantMessage.ID)
	require.NoError(t, err)
	assert.Equal(t, "x = 2 Both roots check out.", text)
}

func TestFinalAnswerTextFallsBackToContent(t *testing.T) {
	solver := &stubSolver{reply: "no sections at all"}
	svc, _, _ := newTestService(t, solver, nil)

	session, err := svc.NewSession(domain.GradeHighSchool)
	require.NoError(t, err)
	result, err := svc.Send(context.Background(), session.ID, SendInput{Prompt: "solve"})
	require.NoError(t, err)

	text, err := svc.FinalAnswerText(session.ID, result.AssistantMessage.ID)
	require.NoError(t, err)
	assert.Equal(t, "no sections at all", text)
}

func TestUpgradeAndTheme(t *testing.T) {
	svc, _, _ := newTestService(t, &stubSolver{reply: "x"}, nil)

	state, err := svc.Upgrade()
	require.NoError(t, err)
	assert.True(t, state.Pro)

	require.NoError(t, svc.SetDarkMode(true))
	state, err = svc.State()
	require.NoError(t, err)
	assert.True(t, state.DarkMode)
	assert.True(t, state.Pro)
}
