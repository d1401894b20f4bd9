package publish

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/ppiankov/factgate/internal/model"
)

// KafkaPublisher produces gate events keyed by claim id, so decisions for
// one claim stay ordered within a partition
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a Kafka publisher. Connections are made lazily.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, report *model.ReconciliationReport) error {
	data, err := NewGateEvent(report).Encode()
	if err != nil {
		return fmt.Errorf("encode gate event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(report.ClaimID), Value: data}); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
