package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/refhub/citation-service/internal/observability"
	"github.com/refhub/citation-service/internal/verify"
)

// ConsumerConfig holds configuration for the task consumer.
type ConsumerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic verification tasks are consumed from.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// Consumer reads verification tasks from Kafka and runs them through the
// verification orchestrator. Tasks for already-cached citations resolve
// from the cache without touching any source.
type Consumer struct {
	reader   *kafka.Reader
	verifier *verify.Orchestrator
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewConsumer creates a verification task consumer.
func NewConsumer(
	cfg ConsumerConfig,
	verifier *verify.Orchestrator,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})

	return &Consumer{
		reader:   reader,
		verifier: verifier,
		logger:   logger.With().Str("component", "queue_consumer").Logger(),
		metrics:  metrics,
	}
}

// Run starts the consume loop. Blocks until context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Msg("starting verification task consumer")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("consumer stopped via context cancellation")
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		c.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received verification task")

		var task VerificationTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			c.metrics.QueueTasksConsumed.WithLabelValues("malformed").Inc()
			c.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal verification task")
			continue
		}
		if task.RawText == "" || task.CorrelationID == "" {
			c.metrics.QueueTasksConsumed.WithLabelValues("malformed").Inc()
			c.logger.Warn().
				Str("correlation_id", task.CorrelationID).
				Msg("dropping task with missing fields")
			continue
		}

		c.handle(ctx, task)
	}
}

// handle runs one task. Verification outcomes are never retry-worthy
// failures here: failed results are published for polling like any other.
func (c *Consumer) handle(ctx context.Context, task VerificationTask) {
	taskCtx := observability.WithCorrelationID(ctx, task.CorrelationID)
	result := c.verifier.Verify(taskCtx, task.RawText, task.CorrelationID)

	c.metrics.QueueTasksConsumed.WithLabelValues(string(result.Status)).Inc()
	c.logger.Debug().
		Str("correlation_id", task.CorrelationID).
		Str("status", string(result.Status)).
		Msg("verification task processed")
}

// Close closes the Kafka reader.
func (c *Consumer) Close() error {
	c.logger.Info().Msg("closing verification task consumer")
	return c.reader.Close()
}
