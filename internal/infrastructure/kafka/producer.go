package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/honeynil/KudosClassroom/internal/models"
	"github.com/segmentio/kafka-go"
)

// EventPublisher sends purchase lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event models.PurchaseEvent) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer, topic: topic}
}

// Publish keys messages by student so one student's events stay ordered on
// a single partition.
func (p *Producer) Publish(ctx context.Context, event models.PurchaseEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", event.StudentID)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to send Kafka message", "topic", p.topic, "event", event.Type, "student_id", event.StudentID, "error", err)
		return err
	}
	slog.Info("Kafka message sent", "topic", p.topic, "event", event.Type, "student_id", event.StudentID)
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		slog.Error("failed to close Kafka writer", "error", err)
		return err
	}
	slog.Info("Kafka writer closed")
	return nil
}

// NoopPublisher drops every event. It is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event models.PurchaseEvent) error {
	slog.Debug("event publishing disabled", "event", event.Type, "student_id", event.StudentID)
	return nil
}

func (NoopPublisher) Close() error { return nil }
