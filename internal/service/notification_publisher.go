package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/noah-isme/od-approval-api/internal/models"
)

// EventPublisher forwards notification events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, recipientID string, event models.NotificationEvent) error
	Close() error
}

// KafkaPublisher writes notification events to a Kafka topic keyed by application id.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a synchronous producer for topic. It returns nil when no brokers are configured.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			Async:                  false,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           10 * time.Second,
		},
	}
}

type publishedEvent struct {
	RecipientID string `json:"recipientId"`
	models.NotificationEvent
}

// Publish sends one JSON message.
func (p *KafkaPublisher) Publish(ctx context.Context, recipientID string, event models.NotificationEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	value, err := json.Marshal(publishedEvent{RecipientID: recipientID, NotificationEvent: event})
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.ApplicationID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish notification event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
