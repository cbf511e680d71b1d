package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// WriterInterface интерфейс для Kafka Writer
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventProducer - получатель уведомлений об индексации
type EventProducer interface {
	NotifyIndexed(ctx context.Context, filmWorkIDs []string) error
	Close() error
}
