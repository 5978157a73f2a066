package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/refhub/citation-service/internal/observability"
)

// ProducerConfig holds configuration for the task producer.
type ProducerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic verification tasks are published to.
	Topic string
}

// Producer publishes verification tasks to Kafka.
type Producer struct {
	writer  *kafka.Writer
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewProducer creates a verification task producer.
func NewProducer(cfg ProducerConfig, logger zerolog.Logger, metrics *observability.Metrics) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}

	return &Producer{
		writer:  writer,
		logger:  logger.With().Str("component", "queue_producer").Logger(),
		metrics: metrics,
	}
}

// Enqueue publishes one task per citation under the given correlation ID.
// Delivery is fire and forget from the caller's perspective: once this
// returns nil, results become observable only through the batch result cache.
func (p *Producer) Enqueue(ctx context.Context, correlationID string, citations []string) error {
	if len(citations) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(citations))
	for _, raw := range citations {
		payload, err := json.Marshal(VerificationTask{
			RawText:       raw,
			CorrelationID: correlationID,
		})
		if err != nil {
			return fmt.Errorf("encode verification task: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(correlationID),
			Value: payload,
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publish verification tasks: %w", err)
	}

	p.metrics.QueueTasksPublished.Add(float64(len(messages)))
	p.logger.Info().
		Str("correlation_id", correlationID).
		Int("count", len(messages)).
		Msg("published verification tasks")
	return nil
}

// Close closes the Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
