package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventPublisher streams security events (alerts, incidents) to Kafka. If
// disabled or unconfigured, publishes are no-ops so the evaluator never has
// to care whether a broker exists.
type EventPublisher struct {
	writer  *kafka.Writer
	topic   string
	logger  *slog.Logger
	enabled bool
}

// securityEvent is the wire envelope on the event topic.
type securityEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// NewEventPublisher creates the publisher. Empty brokers or enabled=false
// yields a no-op publisher.
func NewEventPublisher(brokers, topic string, enabled bool, logger *slog.Logger) *EventPublisher {
	if !enabled || brokers == "" {
		logger.Info("security event publisher disabled")
		return &EventPublisher{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("security event publisher initialized", "brokers", brokers, "topic", topic)
	return &EventPublisher{writer: w, topic: topic, logger: logger, enabled: true}
}

// PublishEvent sends one event keyed by user so per-user ordering holds.
// No-op if disabled.
func (p *EventPublisher) PublishEvent(ctx context.Context, eventType, userID string, payload any) error {
	if !p.enabled {
		return nil
	}

	value, err := json.Marshal(securityEvent{
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: value,
	})
}

// Close shuts down the Kafka writer.
func (p *EventPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
