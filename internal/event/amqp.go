package event

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// AMQPConfig configures the AMQP consumer.
type AMQPConfig struct {
	URL      string
	Queue    string
	Prefetch int
}

// AMQPConsumer reads booking events from a durable RabbitMQ queue with
// manual acknowledgement. Handled events are acked; undecodable events and
// failed runs are rejected without requeue.
type AMQPConsumer struct {
	config  AMQPConfig
	handler *Handler
	logger  *otelzap.Logger
}

// NewAMQPConsumer creates an AMQP consumer.
func NewAMQPConsumer(cfg AMQPConfig, handler *Handler, logger *otelzap.Logger) *AMQPConsumer {
	return &AMQPConsumer{
		config:  cfg,
		handler: handler,
		logger:  logger,
	}
}

// Run connects, declares the queue and consumes until ctx is cancelled.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if c.config.Prefetch > 0 {
		if err := ch.Qos(c.config.Prefetch, 0, false); err != nil {
			return fmt.Errorf("amqp qos: %w", err)
		}
	}

	if _, err := ch.QueueDeclare(
		c.config.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("amqp queue declare %s: %w", c.config.Queue, err)
	}

	deliveries, err := ch.Consume(
		c.config.Queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume %s: %w", c.config.Queue, err)
	}

	c.logger.Info("AMQP consumer started", zap.String("queue", c.config.Queue))
	return c.Consume(ctx, deliveries)
}

// Consume handles deliveries one at a time until ctx is cancelled or the
// channel closes.
func (c *AMQPConsumer) Consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopped")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("amqp delivery channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *AMQPConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	log := c.logger.WithOptions(zap.Fields(
		zap.String("queue", c.config.Queue),
		zap.Uint64("delivery_tag", d.DeliveryTag),
	)).Ctx(ctx)

	outcome, err := c.handler.HandlePayload(ctx, SourceAMQP, d.Body)
	if err != nil {
		log.Error("Rejecting booking event", zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("Failed to nack message", zap.Error(nackErr))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
		return
	}
	log.Info("Booking event handled",
		zap.String("run_id", outcome.RunID),
		zap.String("status", outcome.Status),
	)
}
