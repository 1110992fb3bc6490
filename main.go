package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/subosito/gotenv"

	"github.com/snapsolve/backend/adapters/hasher"
	snaphttp "github.com/snapsolve/backend/adapters/http"
	"github.com/snapsolve/backend/adapters/llm"
	messagebroker "github.com/snapsolve/backend/adapters/message_broker"
	"github.com/snapsolve/backend/adapters/speech"
	"github.com/snapsolve/backend/adapters/storage"
	"github.com/snapsolve/backend/adapters/tts"
	"github.com/snapsolve/backend/adapters/websocket"
	"github.com/snapsolve/backend/config"
	"github.com/snapsolve/backend/domain"
	"github.com/snapsolve/backend/render"
	"github.com/snapsolve/backend/usecase"
)

func main() {
	gotenv.Load()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	var sessionStore domain.SessionStore
	var stateStore domain.StateStore
	switch cfg.Storage.Type {
	case "memory":
		mem := storage.NewMemoryStorage()
		sessionStore, stateStore = mem, mem
	default:
		disk := storage.NewDiskStorage(cfg.Storage.DataDir)
		sessionStore, stateStore = disk, disk
	}
	if err := sessionStore.Init(); err != nil {
		log.Fatalf("initializing storage: %v", err)
	}
	defer sessionStore.Close()

	gemini := llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.SolveModel, cfg.Gemini.ImageModel, cfg.Gemini.Temperature)
	broker := messagebroker.NewChannelMessageBroker()
	defer broker.Close()

	chatService := usecase.NewChatService(gemini, gemini, sessionStore, stateStore, broker, cfg.Usage.FreeDailyLimit)
	exportService := usecase.NewExportService(sessionStore, cfg.Export.OutputDir)
	renderer := render.NewSolutionRenderer(hasher.New())

	googleSpeech := speech.NewGoogleSpeech()
	googleTTS := tts.NewGoogleTTS()

	handler := snaphttp.NewChatHandler(
		chatService,
		exportService,
		renderer,
		googleSpeech,
		googleTTS,
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTExpiry,
		cfg.Auth.APIKey,
		cfg.Auth.APISecret,
	)

	server := websocket.NewServer(broker)
	go server.RunWebsocketHub()

	e := echo.New()

	// Security middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20))) // 20 requests per minute

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // In production, specify exact origins
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			"X-API-Secret",
			"Content-Length",
		},
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Request size limit covers inline base64 attachments
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// WebSocket for visual-aid push (JWT auth, same as HTTP)
	wsGroup := e.Group("/ws")
	wsGroup.Use(handler.JWTMiddleware)
	wsGroup.GET("", server.Handler)

	api := e.Group("/api/v1")

	// Public endpoints (no auth required)
	api.GET("/health", handler.HealthCheck)
	api.POST("/auth/token", handler.GenerateJWT)

	// Everything else requires a JWT
	authed := api.Group("")
	authed.Use(handler.JWTMiddleware)

	authed.POST("/sessions", handler.CreateSession)
	authed.GET("/sessions", handler.ListSessions)
	authed.GET("/sessions/:session_id", handler.GetSession)
	authed.DELETE("/sessions/:session_id", handler.DeleteSession)

	authed.POST("/solve", handler.Solve, handler.RateLimitMiddleware)

	authed.GET("/sessions/:session_id/messages/:message_id/render", handler.RenderMessage)
	authed.POST("/sessions/:session_id/messages/:message_id/export", handler.ExportMessage)
	authed.GET("/sessions/:session_id/messages/:message_id/speak", handler.SpeakMessage)

	authed.POST("/transcribe", handler.Transcribe)
	authed.GET("/state", handler.GetState)
	authed.POST("/upgrade", handler.Upgrade)
	authed.PUT("/theme", handler.SetTheme)

	log.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Server.Port)))
}
