package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type Producer struct {
	Writer WriterInterface
	Logger *zap.SugaredLogger
	now    func() time.Time
}

func NewProducer(brokers []string, topic string, logger *zap.SugaredLogger) *Producer {
	return &Producer{
		Writer: &kafkaWriterWrapper{
			Writer: &kafka.Writer{
				Addr:         kafka.TCP(brokers...),
				Topic:        topic,
				Balancer:     &kafka.LeastBytes{},
				WriteTimeout: writeTimeout,
			},
		},
		Logger: logger,
		now:    time.Now,
	}
}

// Обёртка для реализации интерфейса
type kafkaWriterWrapper struct {
	Writer *kafka.Writer
}

func (w *kafkaWriterWrapper) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.Writer.WriteMessages(ctx, msgs...)
}

func (w *kafkaWriterWrapper) Close() error {
	return w.Writer.Close()
}

// NotifyIndexed - публикует событие film_works_indexed
func (p *Producer) NotifyIndexed(ctx context.Context, filmWorkIDs []string) error {
	now := time.Now
	if p.now != nil {
		now = p.now
	}

	value, err := json.Marshal(Event{
		Type:        FilmWorksIndexed,
		FilmWorkIDs: filmWorkIDs,
		Timestamp:   now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Value: value,
	})
	if err != nil {
		p.Logger.Errorf("Failed to write Kafka message: %v", err)
		return err
	}

	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NopProducer - используется, когда брокеры не настроены
type NopProducer struct{}

func (NopProducer) NotifyIndexed(context.Context, []string) error { return nil }

func (NopProducer) Close() error { return nil }
