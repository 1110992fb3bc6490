package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snapsolve/backend/domain"
	"github.com/snapsolve/backend/utils/log"
)

var (
	// ErrDailyLimitReached means the free tier is exhausted for today. No
	// backend request is made in that case; the client shows the upgrade
	// prompt instead.
	ErrDailyLimitReached = errors.New("daily solve limit reached")

	// ErrEmptyInput means neither prompt text nor media was provided.
	ErrEmptyInput = errors.New("empty input")
)

// defaultMediaPrompt stands in as the stored user message when only an
// attachment was sent.
const defaultMediaPrompt = "Analyze this document."

// ChatService owns the solve flow: usage gating, message lifecycle,
// directive extraction, and the asynchronous visual-aid stage.
type ChatService struct {
	solver         domain.Solver
	aids           domain.VisualAidGenerator
	store          domain.SessionStore
	state          domain.StateStore
	broker         domain.MessageBroker
	freeDailyLimit int

	usageMu sync.Mutex
	now     func() time.Time
}

func NewChatService(
	solver domain.Solver,
	aids domain.VisualAidGenerator,
	store domain.SessionStore,
	state domain.StateStore,
	broker domain.MessageBroker,
	freeDailyLimit int,
) *ChatService {
	return &ChatService{
		solver:         solver,
		aids:           aids,
		store:          store,
		state:          state,
		broker:         broker,
		freeDailyLimit: freeDailyLimit,
		now:            time.Now,
	}
}

// SendInput is one user turn.
type SendInput struct {
	Prompt     string
	GradeLevel domain.GradeLevel
	Mode       domain.Mode
	Media      *domain.Media
}

// SendResult carries both appended messages. The assistant message is
// returned before any visual aid resolves; aids attach later and are
// announced on the broker.
type SendResult struct {
	UserMessage      domain.Message
	AssistantMessage domain.Message
	VisualAidsQueued int
}

// Send runs one solve turn against an existing session.
func (s *ChatService) Send(ctx context.Context, sessionID string, in SendInput) (*SendResult, error) {
	if strings.TrimSpace(in.Prompt) == "" && in.Media == nil {
		return nil, ErrEmptyInput
	}

	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	state, err := s.chargeUsage()
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Prompt)
	if content == "" {
		content = defaultMediaPrompt
	}

	userMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: s.now(),
	}
	if in.Media != nil && strings.HasPrefix(in.Media.MIMEType, "image/") {
		userMsg.Image = in.Media.Data
	}

	firstTurn := len(session.Messages) == 0
	if err := s.store.AddMessage(sessionID, &userMsg); err != nil {
		return nil, err
	}
	if firstTurn {
		s.applySessionTitle(sessionID, userMsg.Content, in.GradeLevel)
	}

	raw := s.solver.Solve(ctx, domain.SolveRequest{
		Prompt:     in.Prompt,
		GradeLevel: in.GradeLevel,
		History:    domain.BoundedHistory(session.Messages),
		Mode:       in.Mode,
		Pro:        state.Pro,
		Media:      in.Media,
	})

	assistantMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   raw,
		Timestamp: s.now(),
	}
	if err := s.store.AddMessage(sessionID, &assistantMsg); err != nil {
		return nil, err
	}

	// Directives are extracted once at append time; renders re-parse on
	// their own.
	sections, _ := domain.ParseSections(raw)
	prompts := domain.ExtractVisualAidPrompts(domain.VisualAidBody(sections))
	if len(prompts) > 0 {
		go s.generateVisualAids(sessionID, assistantMsg.ID, prompts)
	}

	return &SendResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		VisualAidsQueued: len(prompts),
	}, nil
}

// chargeUsage resets the counter on a date change, enforces the free-tier
// limit, and consumes one solve. The limit check happens before any
// backend traffic.
func (s *ChatService) chargeUsage() (domain.AppState, error) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	state, err := s.state.LoadState()
	if err != nil {
		return domain.AppState{}, err
	}

	today := s.now().Format("2006-01-02")
	if state.LastUsageDate != today {
		state.DailyUsageCount = 0
		state.LastUsageDate = today
	}

	if !state.Pro && state.DailyUsageCount >= s.freeDailyLimit {
		return domain.AppState{}, ErrDailyLimitReached
	}

	state.DailyUsageCount++
	if err := s.state.SaveState(state); err != nil {
		return domain.AppState{}, err
	}
	return state, nil
}

// generateVisualAids runs the second suspension stage: all directive calls
// concurrently, joined, successes attached in one mutation. A deliberately
// detached context: navigating away does not abort in-flight generation,
// stale results are dropped by the id check at attach time.
func (s *ChatService) generateVisualAids(sessionID, messageID string, prompts []string) {
	ctx := context.WithValue(context.Background(), "session_id", sessionID)
	ctx = context.WithValue(ctx, "message_id", messageID)

	results := make([]string, len(prompts))
	var wg sync.WaitGroup
	for i, prompt := range prompts {
		wg.Add(1)
		go func(i int, prompt string) {
			defer wg.Done()
			url, err := s.aids.GenerateVisualAid(ctx, prompt)
			if err != nil {
				log.WithCtx(ctx).Warn("visual aid generation failed", zap.String("prompt", prompt), zap.Error(err))
				return
			}
			results[i] = url
		}(i, prompt)
	}
	wg.Wait()

	aids := make([]string, 0, len(results))
	for _, url := range results {
		if url != "" {
			aids = append(aids, url)
		}
	}
	if len(aids) == 0 {
		return
	}

	if err := s.store.AttachVisualAids(sessionID, messageID, aids); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrMessageNotFound) {
			log.WithCtx(ctx).Info("dropping visual aids for vanished message")
			return
		}
		log.WithCtx(ctx).Error("attaching visual aids", zap.Error(err))
		return
	}

	payload, err := json.Marshal(domain.VisualAidEvent{
		SessionID:  sessionID,
		MessageID:  messageID,
		VisualAids: aids,
	})
	if err != nil {
		log.WithCtx(ctx).Error("encoding visual aid event", zap.Error(err))
		return
	}
	if err := s.broker.Publish(ctx, domain.VisualAidTopic, sessionID, payload); err != nil {
		log.WithCtx(ctx).Warn("publishing visual aid event", zap.Error(err))
	}
}

func (s *ChatService) applySessionTitle(sessionID, content string, gradeLevel domain.GradeLevel) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return
	}
	session.Title = domain.SessionTitle(content)
	if gradeLevel != "" {
		session.GradeLevel = gradeLevel
	}
	if err := s.store.UpdateSession(session); err != nil {
		log.With(zap.String("session_id", sessionID), zap.Error(err)).Warn("updating session title")
	}
}

// NewSession starts an empty conversation.
func (s *ChatService) NewSession(gradeLevel domain.GradeLevel) (*domain.Session, error) {
	if gradeLevel == "" {
		gradeLevel = domain.GradeHighSchool
	}
	session := &domain.Session{
		ID:          uuid.NewString(),
		Title:       "New Conversation",
		GradeLevel:  gradeLevel,
		LastUpdated: s.now(),
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession loads one conversation with its full message list.
func (s *ChatService) GetSession(sessionID string) (*domain.Session, error) {
	return s.store.GetSession(sessionID)
}

// ListSessions returns all conversations, newest first.
func (s *ChatService) ListSessions() ([]*domain.Session, error) {
	return s.store.ListSessions()
}

// DeleteSession removes a conversation. In-flight visual aids for its
// messages are dropped at attach time.
func (s *ChatService) DeleteSession(sessionID string) error {
	return s.store.DeleteSession(sessionID)
}

// GetMessage loads one message from a conversation.
func (s *ChatService) GetMessage(sessionID, messageID string) (*domain.Message, error) {
	return s.store.GetMessage(sessionID, messageID)
}

// State returns the app state with the daily counter already reset if the
// stored date is not today.
func (s *ChatService) State() (domain.AppState, error) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	state, err := s.state.LoadState()
	if err != nil {
		return domain.AppState{}, err
	}
	today := s.now().Format("2006-01-02")
	if state.LastUsageDate != today {
		state.DailyUsageCount = 0
		state.LastUsageDate = today
	}
	return state, nil
}

// Upgrade flips the pro flag. The checkout flow is simulated; there is no
// payment processor behind this.
func (s *ChatService) Upgrade() (domain.AppState, error) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	state, err := s.state.LoadState()
	if err != nil {
		return domain.AppState{}, err
	}
	state.Pro = true
	if err := s.state.SaveState(state); err != nil {
		return domain.AppState{}, err
	}
	return state, nil
}

// SetDarkMode persists the theme preference.
func (s *ChatService) SetDarkMode(dark bool) error {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	state, err := s.state.LoadState()
	if err != nil {
		return err
	}
	state.DarkMode = dark
	return s.state.SaveState(state)
}

// FinalAnswerText extracts the FINAL ANSWER section of a message for
// read-aloud. Falls back to the whole content when the response never
// conformed to the section protocol.
func (s *ChatService) FinalAnswerText(sessionID, messageID string) (string, error) {
	msg, err := s.store.GetMessage(sessionID, messageID)
	if err != nil {
		return "", err
	}
	sections, _ := domain.ParseSections(msg.Content)
	for _, section := range sections {
		if strings.EqualFold(strings.TrimSpace(section.Title), "final answer") {
			var parts []string
			for _, line := range section.Body {
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					parts = append(parts, trimmed)
				}
			}
			return strings.Join(parts, " "), nil
		}
	}
	return strings.TrimSpace(msg.Content), nil
}
