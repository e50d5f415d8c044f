package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// SourceHeader names the process that published an event.
const SourceHeader = "goblin-source"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes outbox events with kafka-go. It is the alternative to
// the broadcaster's sarama client.
type Producer struct {
	w      messageWriter
	topic  string
	source []byte
}

func NewProducer(brokers []string, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{w: w, topic: topic, source: []byte("goblin-core")}
}

// Publish blocks until the brokers ack the message. Keys are hashed to
// partitions so one trader's events stay ordered.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: []kafka.Header{{Key: SourceHeader, Value: p.source}},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.w.Close()
}
