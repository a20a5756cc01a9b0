// Package kafka publishes committed calendar changes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/hrygo/agenda/server/service/schedule"
)

// Writer is the subset of *kafka.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a schedule.Notifier writing one message per change.
type Publisher struct {
	writer Writer
	topic  string
}

// PublisherConfig configures the Kafka writer.
type PublisherConfig struct {
	Brokers []string
	Topic   string
}

// NewPublisher creates a publisher writing to cfg.Topic.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	})
	slog.Info("kafka change publisher enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewPublisherWithWriter(writer, cfg.Topic), nil
}

// NewPublisherWithWriter creates a publisher over an existing writer.
func NewPublisherWithWriter(writer Writer, topic string) *Publisher {
	return &Publisher{writer: writer, topic: topic}
}

// Notify writes the change keyed by event id, so changes of one event stay ordered.
func (p *Publisher) Notify(ctx context.Context, change *schedule.Change) error {
	if change == nil || change.Event == nil {
		return errors.New("change without event")
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "failed to encode change")
	}
	msg := kafka.Message{
		Key:   []byte(change.Event.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.New().String())},
			{Key: "event_type", Value: []byte(change.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to publish %s to %s", change.Type, p.topic)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// HeaderValue returns the value of the first header named key.
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
