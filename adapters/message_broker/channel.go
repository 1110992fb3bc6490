package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snapsolve/backend/domain"
	"github.com/snapsolve/backend/utils/log"
	"go.uber.org/zap"
)

// ChannelMessageBroker implements domain.MessageBroker on Go channels. A
// publish is delivered to the exact-key subscription and to the topic-wide
// subscription (empty routing key), so the websocket layer can watch a
// whole topic while tests watch a single session.
type ChannelMessageBroker struct {
	topics map[string]chan domain.BrokerMessage
	mu     sync.RWMutex
	closed bool
}

func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string]chan domain.BrokerMessage),
	}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// Publish sends a message to a topic and routing key.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("message broker is closed")
	}

	keys := []string{makeKey(topic, "")}
	if routingKey != "" {
		keys = append(keys, makeKey(topic, routingKey))
	}

	channels := make([]chan domain.BrokerMessage, 0, len(keys))
	for _, key := range keys {
		channel, exists := b.topics[key]
		if !exists {
			channel = make(chan domain.BrokerMessage, 100)
			b.topics[key] = channel
		}
		channels = append(channels, channel)
	}
	b.mu.Unlock()

	msg := domain.BrokerMessage{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	for _, channel := range channels {
		select {
		case channel <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			return fmt.Errorf("topic channel is full: %s:%s", topic, routingKey)
		}
	}

	log.WithCtx(ctx).Debug("message published to topic",
		zap.String("topic", topic),
		zap.String("routingKey", routingKey),
		zap.Int("payload_size", len(message)))
	return nil
}

// Subscribe listens for messages on a topic and routing key.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.BrokerMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	key := makeKey(topic, routingKey)
	channel, exists := b.topics[key]
	if !exists {
		channel = make(chan domain.BrokerMessage, 100)
		b.topics[key] = channel
	}

	log.WithCtx(ctx).Info("subscribed to topic", zap.String("topic", topic), zap.String("routingKey", routingKey))
	return channel, nil
}

// Close closes the broker and all topic channels.
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, channel := range b.topics {
		close(channel)
	}
	b.topics = make(map[string]chan domain.BrokerMessage)

	log.WithCtx(context.Background()).Info("message broker closed")
	return nil
}
