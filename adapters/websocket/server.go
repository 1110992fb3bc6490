package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/snapsolve/backend/domain"
	"github.com/snapsolve/backend/utils/log"
)

// Server bridges the message broker and connected websocket clients: when
// visual aids attach to a message, every client learns about it without
// polling. The owning message's text was already delivered over HTTP, so
// aids can only ever arrive after it.
type Server struct {
	upgrader websocket.Upgrader
	broker   domain.MessageBroker
	hub      *Hub
}

func NewServer(broker domain.MessageBroker) *Server {
	server := &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		broker:   broker,
		hub:      NewHub(),
	}

	go server.startVisualAidListener()

	return server
}

func (s *Server) RunWebsocketHub() {
	s.hub.Run()
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// startVisualAidListener forwards visual-aid events from the broker to all
// connected clients.
func (s *Server) startVisualAidListener() {
	ctx := context.Background()

	messageChan, err := s.broker.Subscribe(ctx, domain.VisualAidTopic, "")
	if err != nil {
		log.WithCtx(ctx).Error("failed to subscribe to visual aid topic", zap.Error(err))
		return
	}

	log.WithCtx(ctx).Info("websocket server listening for visual aid events")

	for msg := range messageChan {
		var event domain.VisualAidEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			log.WithCtx(ctx).Error("failed to unmarshal visual aid event", zap.Error(err))
			continue
		}

		wsMessage := map[string]interface{}{
			"type":        "visual_aids",
			"session_id":  event.SessionID,
			"message_id":  event.MessageID,
			"visual_aids": event.VisualAids,
			"timestamp":   msg.Timestamp,
		}
		jsonData, err := json.Marshal(wsMessage)
		if err != nil {
			log.WithCtx(ctx).Error("failed to marshal websocket message", zap.Error(err))
			continue
		}

		s.hub.Broadcast(jsonData)
		log.WithCtx(ctx).Info("broadcasted visual aids to websocket clients",
			zap.String("session_id", event.SessionID),
			zap.String("message_id", event.MessageID),
			zap.Int("count", len(event.VisualAids)))
	}
}
