// Package events publishes coaching events for downstream consumers such as
// the AI coach.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/stride/pkg/metrics"
)

// Type names an event kind.
type Type string

// Event kinds.
const (
	TypeActivityIngested Type = "activity_ingested"
	TypeGoalSet          Type = "goal_set"
	TypeCalendarChanged  Type = "calendar_changed"
	TypeInsightSelected  Type = "insight_selected"
)

const (
	typeHeader   = "event_type"
	batchTimeout = 10 * time.Millisecond
	writeTimeout = 5 * time.Second
	maxAttempts  = 3
)

// Event is one published fact about a user's training.
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic, keyed by user id so that a
// user's events stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

var _ Publisher = (*KafkaPublisher)(nil)

// Option applies a configuration option to the KafkaPublisher.
type Option func(*KafkaPublisher)

// WithWriter replaces the Kafka writer.
func WithWriter(w MessageWriter) Option {
	return func(p *KafkaPublisher) {
		if w != nil {
			p.writer = w
		}
	}
}

// WithClock sets the clock used to stamp events without a time.
func WithClock(now func() time.Time) Option {
	return func(p *KafkaPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewKafkaPublisher constructs a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			// Events go out one at a time on the write path.
			BatchTimeout: batchTimeout,
			WriteTimeout: writeTimeout,
			MaxAttempts:  maxAttempts,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish encodes e as JSON and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = p.now()
	}
	value, err := json.Marshal(e)
	if err != nil {
		metrics.RecordEventFailed(string(e.Type))
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}

	msg := kafka.Message{
		Key:     []byte(e.UserID),
		Value:   value,
		Time:    e.OccurredAt,
		Headers: []kafka.Header{{Key: typeHeader, Value: []byte(e.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordEventFailed(string(e.Type))
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	metrics.RecordEventPublished(string(e.Type))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
