package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/snapsolve/backend/domain"
	"github.com/snapsolve/backend/render"
	"github.com/snapsolve/backend/usecase"
	"github.com/snapsolve/backend/utils/log"
)

const (
	// Rate limiting
	maxConcurrentSolves = 10

	// Transcription input cap
	maxAudioBytes = 10 * 1024 * 1024
)

type ChatHandler struct {
	chat        *usecase.ChatService
	export      *usecase.ExportService
	renderer    *render.SolutionRenderer
	transcriber domain.Transcriber
	synthesizer domain.Synthesizer

	jwtSecret []byte
	jwtExpiry time.Duration
	apiKey    string
	apiSecret string
}

func NewChatHandler(
	chat *usecase.ChatService,
	export *usecase.ExportService,
	renderer *render.SolutionRenderer,
	transcriber domain.Transcriber,
	synthesizer domain.Synthesizer,
	jwtSecret string,
	jwtExpiry time.Duration,
	apiKey, apiSecret string,
) *ChatHandler {
	return &ChatHandler{
		chat:        chat,
		export:      export,
		renderer:    renderer,
		transcriber: transcriber,
		synthesizer: synthesizer,
		jwtSecret:   []byte(jwtSecret),
		jwtExpiry:   jwtExpiry,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
	}
}

type JWTClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a JWT token for authenticated clients.
func (h *ChatHandler) GenerateJWT(c echo.Context) error {
	key := c.Request().Header.Get("X-API-Key")
	secret := c.Request().Header.Get("X-API-Secret")

	if key != h.apiKey || secret != h.apiSecret {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	claims := &JWTClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "snapsolve-backend",
			Subject:   "chat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.With(zap.Error(err)).Error("signing jwt")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token": tokenString,
		"type":  "Bearer",
	})
}

// JWTMiddleware authenticates every API route except health and token.
func (h *ChatHandler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
			c.Set("user_id", claims.UserID)
			return next(c)
		}

		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
	}
}

// RateLimitMiddleware bounds concurrent solve requests.
func (h *ChatHandler) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	semaphore := make(chan struct{}, maxConcurrentSolves)
	return func(c echo.Context) error {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			return next(c)
		default:
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many concurrent requests")
		}
	}
}

type SolveRequest struct {
	SessionID  string        `json:"session_id"`
	Prompt     string        `json:"prompt"`
	GradeLevel string        `json:"grade_level"`
	Mode       string        `json:"mode"`
	Media      *domain.Media `json:"media,omitempty"`
}

type SolveResponse struct {
	UserMessage      domain.Message `json:"user_message"`
	AssistantMessage domain.Message `json:"assistant_message"`
	HTML             string         `json:"html"`
	VisualAidsQueued int            `json:"visual_aids_queued"`
}

// Solve runs one question through the solver and returns both appended
// messages plus the rendered solution. Visual aids follow over the
// websocket once generation completes.
func (h *ChatHandler) Solve(c echo.Context) error {
	var req SolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		sessionID = req.SessionID
	}

	result, err := h.chat.Send(c.Request().Context(), sessionID, usecase.SendInput{
		Prompt:     req.Prompt,
		GradeLevel: domain.GradeLevel(req.GradeLevel),
		Mode:       domain.Mode(req.Mode),
		Media:      req.Media,
	})
	switch {
	case errors.Is(err, usecase.ErrDailyLimitReached):
		return c.JSON(http.StatusPaymentRequired, map[string]interface{}{
			"upgrade_required": true,
			"message":          "Daily free limit reached. Upgrade to SnapSolve Pro for unlimited solves.",
		})
	case errors.Is(err, usecase.ErrEmptyInput):
		return echo.NewHTTPError(http.StatusBadRequest, "Prompt text or media is required")
	case errors.Is(err, domain.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	case err != nil:
		log.With(zap.Error(err)).Error("solve failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process request")
	}

	return c.JSON(http.StatusOK, SolveResponse{
		UserMessage:      result.UserMessage,
		AssistantMessage: result.AssistantMessage,
		HTML:             h.renderer.Render(result.AssistantMessage),
		VisualAidsQueued: result.VisualAidsQueued,
	})
}

type CreateSessionRequest struct {
	GradeLevel string `json:"grade_level"`
}

func (h *ChatHandler) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session, err := h.chat.NewSession(domain.GradeLevel(req.GradeLevel))
	if err != nil {
		log.With(zap.Error(err)).Error("creating session")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}
	return c.JSON(http.StatusCreated, session)
}

type SessionSummary struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	GradeLevel  domain.GradeLevel `json:"grade_level"`
	LastUpdated time.Time         `json:"last_updated"`
}

func (h *ChatHandler) ListSessions(c echo.Context) error {
	sessions, err := h.chat.ListSessions()
	if err != nil {
		log.With(zap.Error(err)).Error("listing sessions")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list sessions")
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:          session.ID,
			Title:       session.Title,
			GradeLevel:  session.GradeLevel,
			LastUpdated: session.LastUpdated,
		})
	}
	return c.JSON(http.StatusOK, summaries)
}

func (h *ChatHandler) GetSession(c echo.Context) error {
	session, err := h.chat.GetSession(c.Param("session_id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load session")
	}
	return c.JSON(http.StatusOK, session)
}

func (h *ChatHandler) DeleteSession(c echo.Context) error {
	err := h.chat.DeleteSession(c.Param("session_id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete session")
	}
	return c.NoContent(http.StatusNoContent)
}

// RenderMessage returns the interactive HTML for one message; clients call
// it again after the visual-aid event to pick up the gallery.
func (h *ChatHandler) RenderMessage(c echo.Context) error {
	msg, err := h.chat.GetMessage(c.Param("session_id"), c.Param("message_id"))
	if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrMessageNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load message")
	}
	return c.JSON(http.StatusOK, map[string]string{"html": h.renderer.Render(*msg)})
}

// ExportMessage produces the PDF report and streams it back as a download.
func (h *ChatHandler) ExportMessage(c echo.Context) error {
	path, err := h.export.Export(c.Request().Context(), c.Param("session_id"), c.Param("message_id"))
	switch {
	case errors.Is(err, usecase.ErrExportInFlight):
		return echo.NewHTTPError(http.StatusConflict, "An export is already in progress")
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrMessageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Message not found")
	case err != nil:
		log.With(zap.Error(err)).Error("export failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to export PDF. Please try again.")
	}
	return c.Attachment(path, filepath.Base(path))
}

// SpeakMessage reads the FINAL ANSWER section aloud.
func (h *ChatHandler) SpeakMessage(c echo.Context) error {
	text, err := h.chat.FinalAnswerText(c.Param("session_id"), c.Param("message_id"))
	if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrMessageNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load message")
	}

	audio, err := h.synthesizer.Synthesize(c.Request().Context(), text)
	if err != nil {
		log.With(zap.Error(err)).Error("speech synthesis failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to synthesize speech")
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

// Transcribe converts recorded audio into prompt text. Capture failures
// stay transient: the conversation is untouched.
func (h *ChatHandler) Transcribe(c echo.Context) error {
	audio, err := io.ReadAll(io.LimitReader(c.Request().Body, maxAudioBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read audio body")
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Empty audio body")
	}

	text, err := h.transcriber.Transcribe(c.Request().Context(), audio)
	if err != nil {
		log.With(zap.Error(err)).Error("transcription failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to transcribe audio")
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func (h *ChatHandler) GetState(c echo.Context) error {
	state, err := h.chat.State()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load state")
	}
	return c.JSON(http.StatusOK, state)
}

// Upgrade simulates the checkout flow completing.
func (h *ChatHandler) Upgrade(c echo.Context) error {
	state, err := h.chat.Upgrade()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to upgrade")
	}
	return c.JSON(http.StatusOK, state)
}

type ThemeRequest struct {
	DarkMode bool `json:"dark_mode"`
}

func (h *ChatHandler) SetTheme(c echo.Context) error {
	var req ThemeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.chat.SetDarkMode(req.DarkMode); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save theme")
	}
	return c.NoContent(http.StatusNoContent)
}

// HealthCheck endpoint.
func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "snapsolve-backend",
	})
}
