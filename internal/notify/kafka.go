package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"solana-token-transfer/internal/domain"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes transfer events to a Kafka topic, keyed by owner
// so one wallet's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer}
}

// Publish writes one event and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, rec *domain.TransferRecord) error {
	payload, err := json.Marshal(NewTransferEvent(rec))
	if err != nil {
		return fmt.Errorf("marshal transfer event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.Owner),
		Value: payload,
		Time:  time.UnixMilli(rec.CreatedAt),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
