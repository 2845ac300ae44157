package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/iara-orders/orders-api/models"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Order event types
const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrderDeleted = "order.deleted"
	EventItemCreated  = "order_item.created"
	EventItemUpdated  = "order_item.updated"
	EventItemDeleted  = "order_item.deleted"
)

// OrderEvent is emitted after an order or item mutation commits
type OrderEvent struct {
	Type        string           `json:"type"`
	OrderID     uint             `json:"order_id"`
	OrderItemID uint             `json:"order_item_id,omitempty"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

func newOrderEvent(eventType string, order *models.Order) OrderEvent {
	total := order.TotalAmount
	return OrderEvent{Type: eventType, OrderID: order.ID, TotalAmount: &total}
}

func newItemEvent(eventType string, item *models.OrderItem, orderTotal decimal.Decimal) OrderEvent {
	return OrderEvent{Type: eventType, OrderID: item.OrderID, OrderItemID: item.ID, TotalAmount: &orderTotal}
}

// EventPublisher delivers order events to interested consumers
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// NoopEventPublisher drops every event
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, OrderEvent) error { return nil }

// kafkaWriter is the part of *kafka.Writer the publisher needs
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes events as JSON messages keyed by order id
type KafkaEventPublisher struct {
	writer kafkaWriter
}

// NewKafkaWriter builds an async writer for topic on the given brokers.
// WriteMessages only enqueues; delivery failures are logged by
// logDeliveryFailure.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Async:                  true,
		Completion:             logDeliveryFailure,
	}
}

func logDeliveryFailure(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range messages {
		log.Warn().Err(err).
			Str("topic", msg.Topic).
			Str("order_id", string(msg.Key)).
			Msg("failed to deliver order event")
	}
}

// NewKafkaEventPublisher publishes through writer
func NewKafkaEventPublisher(writer kafkaWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

// Publish stamps the event time if unset and sends the message
func (p *KafkaEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

func encodeEvent(event OrderEvent) (kafka.Message, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.OrderID), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}, nil
}

// RecordingEventPublisher keeps published events in memory for tests
type RecordingEventPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	Err    error
}

// NewRecordingEventPublisher creates an empty recorder
func NewRecordingEventPublisher() *RecordingEventPublisher {
	return &RecordingEventPublisher{}
}

func (r *RecordingEventPublisher) Publish(_ context.Context, event OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far
func (r *RecordingEventPublisher) Events() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderEvent(nil), r.events...)
}

// Types returns the type of each published event in order
func (r *RecordingEventPublisher) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
