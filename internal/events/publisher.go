package events

import (
	"context"
	"fmt"
	"otithi/pkg/kafka"
	kafka_middleware "otithi/pkg/kafka/middleware"
	"otithi/pkg/logger"
	"otithi/pkg/middleware"
)

const (
	SchemaVersion = "1"
	Source        = "otithi-api"
)

// Publisher emits domain events. Publishing is best effort: callers log a
// failure and carry on.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
	Close() error
}

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	producer producer
	metrics  *kafka_middleware.Metrics
	log      *logger.Logger
}

// NewKafkaPublisher wires the logging and metrics middleware onto p.
func NewKafkaPublisher(p *kafka.Producer, withMiddleware bool, log *logger.Logger) *KafkaPublisher {
	metrics := kafka_middleware.NewMetrics()
	if withMiddleware {
		p.Use(kafka_middleware.LoggingProducerMiddleware(log))
		p.Use(kafka_middleware.MetricsProducerMiddleware(metrics))
	}
	return &KafkaPublisher{producer: p, metrics: metrics, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	mb := kafka.NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(eventType).
		WithEventID("").
		WithCorrelationID(middleware.RequestIDFrom(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source)
	if err := mb.Err(); err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	if err := p.producer.Publish(ctx, mb.Build()); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Metrics() kafka_middleware.Snapshot {
	return p.metrics.Snapshot()
}

func (p *KafkaPublisher) Close() error {
	p.log.Info("Closing event publisher", p.metrics.Snapshot().LogValues()...)
	return p.producer.Close()
}

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct {
	log *logger.Logger
}

func NewNoopPublisher(log *logger.Logger) *NoopPublisher {
	return &NoopPublisher{log: log}
}

func (p *NoopPublisher) Publish(_ context.Context, eventType, key string, _ any) error {
	p.log.Debug("Event publishing disabled, dropping event", "event_type", eventType, "key", key)
	return nil
}

func (p *NoopPublisher) Close() error { return nil }

// Emit publishes and logs a failure without returning it.
func Emit(ctx context.Context, p Publisher, log *logger.Logger, eventType, key string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, eventType, key, payload); err != nil {
		log.Error("Failed to publish event",
			"event_type", eventType,
			"key", key,
			"error", err,
		)
	}
}
