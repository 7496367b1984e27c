// Package messaging publishes order events to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/rl1809/orderbot/internal/core/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublishError records which operation failed on which topic.
type PublishError struct {
	Operation string
	Topic     string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("kafka %s on topic %s: %v", e.Operation, e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher writes synchronously with a single attempt; a failed
// publish is reported to the caller and not retried.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  1,
		RequiredAcks: kafka.RequireOne,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error().Str("component", "kafka").Msgf(msg, args...)
		}),
	}
	return newKafkaPublisher(w, topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// PublishOrderEvent keys messages by order id so events of one order stay ordered.
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return &PublishError{Operation: "encode", Topic: p.topic, Err: err}
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return &PublishError{Operation: "write", Topic: p.topic, Err: err}
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
