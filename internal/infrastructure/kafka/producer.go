package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"questchat-ws/internal/domain"

	"github.com/segmentio/kafka-go"
)

// ModerationEvent records an admin removing a message, for the moderation
// pipeline downstream of the gateway.
type ModerationEvent struct {
	RoomID    string    `json:"room_id"`
	MessageID string    `json:"message_id"`
	RemovedBy string    `json:"removed_by"`
	Timestamp time.Time `json:"timestamp"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
		// Optimize for low latency
		BatchSize:    1,
		BatchTimeout: 0 * time.Millisecond,
		RequiredAcks: 1,
		Async:        false,
	}
	return &Producer{Writer: writer}
}

// Publish mirrors one event, routing it to a topic by payload type.
func (p *Producer) Publish(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topicFor(payload),
		Value: data,
	}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("kafka: failed to publish to topic %s: %v", msg.Topic, err)
		return err
	}
	return nil
}

func (p *Producer) topicFor(payload interface{}) string {
	switch payload.(type) {
	case domain.ChatMessage:
		return "chat-messages"
	case ModerationEvent:
		return "moderation-events"
	default:
		return "chat-messages"
	}
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
