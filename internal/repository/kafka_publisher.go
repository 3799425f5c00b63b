package repository

import (
	"context"

	"RateSync/internal/domain/models"
	drepo "RateSync/internal/domain/repository"
	pkgkafka "RateSync/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Events are keyed by
// currency so per-currency ordering survives partitioning.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) drepo.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishSync(ctx context.Context, ev models.SyncEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Currency), ev)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
