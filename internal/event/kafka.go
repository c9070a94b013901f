package event

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// commitTimeout bounds an offset commit, which also runs during shutdown.
const commitTimeout = 5 * time.Second

// KafkaConfig configures the Kafka consumer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaConsumer reads booking events from a Kafka topic.
//
// Every fetched message is committed after it was handled, including failed
// runs: carrier bookings are not idempotent, so a redelivery could book the
// same parcels twice.
type KafkaConsumer struct {
	reader  MessageReader
	handler *Handler
	logger  *otelzap.Logger
	backoff time.Duration
}

// NewKafkaConsumer creates a consumer group reader for cfg.Topic.
func NewKafkaConsumer(cfg KafkaConfig, handler *Handler, logger *otelzap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewKafkaConsumerWithReader(reader, handler, logger)
}

// NewKafkaConsumerWithReader creates a consumer on top of an existing reader.
func NewKafkaConsumerWithReader(reader MessageReader, handler *Handler, logger *otelzap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:  reader,
		handler: handler,
		logger:  logger,
		backoff: time.Second,
	}
}

// Run consumes messages until ctx is cancelled, then closes the reader.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	c.logger.Info("Kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Kafka consumer stopped")
				return nil
			}
			c.logger.Warn("Failed to fetch Kafka message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.process(ctx, msg)
		c.commit(ctx, msg)
	}
}

// commit acknowledges msg even when ctx was cancelled while it was handled.
func (c *KafkaConsumer) commit(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit Kafka message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) {
	carrier := headerCarrier(msg.Headers)
	ctx = otel.GetTextMapPropagator().Extract(ctx, &carrier)

	log := c.logger.WithOptions(zap.Fields(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)).Ctx(ctx)

	outcome, err := c.handler.HandlePayload(ctx, SourceKafka, msg.Value)
	if err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			log.Error("Skipping undecodable booking event", zap.Error(err))
			return
		}
		log.Error("Booking run failed, message will not be redelivered", zap.Error(err))
		return
	}
	log.Info("Booking event handled",
		zap.String("run_id", outcome.RunID),
		zap.String("status", outcome.Status),
	)
}

// headerCarrier adapts Kafka message headers to a propagation.TextMapCarrier.
type headerCarrier []kafka.Header

func (h *headerCarrier) Get(key string) string {
	for _, header := range *h {
		if header.Key == key {
			return string(header.Value)
		}
	}
	return ""
}

func (h *headerCarrier) Set(key, value string) {
	for i := range *h {
		if (*h)[i].Key == key {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

func (h *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*h))
	for _, header := range *h {
		keys = append(keys, header.Key)
	}
	return keys
}
