package domain

import (
	"context"
	"time"
)

// VisualAidTopic is where the chat service announces that generated aids
// were attached to a message.
const VisualAidTopic = "visualaid.results"

// MessageBroker decouples the async visual-aid stage from whoever pushes
// updates to connected clients.
type MessageBroker interface {
	// Publish sends a message to a topic with a routing key.
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens on a topic. An empty routing key receives every
	// message published to the topic.
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan BrokerMessage, error)

	Close() error
}

// BrokerMessage is a message received from the broker.
type BrokerMessage struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// VisualAidEvent is the payload published on VisualAidTopic.
type VisualAidEvent struct {
	SessionID  string   `json:"session_id"`
	MessageID  string   `json:"message_id"`
	VisualAids []string `json:"visual_aids"`
}
