// Package rabbitmq consumes billing events and turns them into subscription
// commands on the command queue.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/usecase"
	"github.com/campusgate/access-core/internal/infrastructure/queue"
	"github.com/campusgate/access-core/pkg/metrics"
)

const (
	exchangeName  = "billing.events"
	exchangeKind  = "topic"
	queueName     = "access-core.billing"
	prefetchCount = 10
)

var bindings = []string{
	KeySubscriptionCreated,
	KeySubscriptionActivated,
	KeySubscriptionCancelled,
	KeySubscriptionExpired,
	KeySubscriptionSuspended,
}

// ErrConsumerClosed is returned by Run once Close has been called.
var ErrConsumerClosed = errors.New("rabbitmq consumer closed")

// Enqueuer accepts decoded commands.
type Enqueuer func(ctx context.Context, cmd any) error

// QueueEnqueuer routes decoded billing commands onto the command queue.
func QueueEnqueuer(q *queue.Dispatcher) Enqueuer {
	return func(ctx context.Context, cmd any) error {
		switch c := cmd.(type) {
		case usecase.CreateSubscription:
			return queue.Enqueue(ctx, q, c)
		case usecase.UpdateSubscriptionStatus:
			return queue.Enqueue(ctx, q, c)
		default:
			return fmt.Errorf("%w: %T", errUnroutable, cmd)
		}
	}
}

// Consumer reads billing.events through a durable queue.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	enqueue Enqueuer
	log     zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewConsumer dials uri and prepares a channel with prefetch applied.
func NewConsumer(uri string, enqueue Enqueuer, log zerolog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq qos: %w", err)
	}

	return &Consumer{conn: conn, channel: ch, enqueue: enqueue, log: log}, nil
}

// Run declares the topology and consumes until ctx is cancelled or the
// channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.wg.Done()

	if err := c.channel.ExchangeDeclare(exchangeName, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchangeName, err)
	}
	if _, err := c.channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	for _, key := range bindings {
		if err := c.channel.QueueBind(queueName, key, exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, exchangeName, err)
		}
	}

	msgs, err := c.channel.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, err)
	}
	c.log.Info().Str("queue", queueName).Strs("bindings", bindings).Msg("billing consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

// acker is the subset of amqp.Delivery used to settle a message.
type acker interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	c.settle(ctx, msg.RoutingKey, msg.Body, msg)
}

// settle decodes and enqueues one message. Malformed messages are dropped
// without requeue; enqueue failures are requeued.
func (c *Consumer) settle(ctx context.Context, routingKey string, body []byte, a acker) {
	log := c.log.With().Str("routing_key", routingKey).Logger()

	cmd, err := decode(routingKey, body)
	if err != nil {
		metrics.BillingEventsTotal.WithLabelValues(routingKey, "rejected").Inc()
		log.Warn().Err(err).Msg("rejecting malformed billing event")
		if nackErr := a.Nack(false, false); nackErr != nil {
			log.Error().Err(nackErr).Msg("nack failed")
		}
		return
	}

	if err := c.enqueue(ctx, cmd); err != nil {
		metrics.BillingEventsTotal.WithLabelValues(routingKey, "requeued").Inc()
		log.Error().Err(err).Msg("enqueue failed, requeueing")
		if nackErr := a.Nack(false, true); nackErr != nil {
			log.Error().Err(nackErr).Msg("nack failed")
		}
		return
	}

	metrics.BillingEventsTotal.WithLabelValues(routingKey, "enqueued").Inc()
	if ackErr := a.Ack(false); ackErr != nil {
		log.Error().Err(ackErr).Msg("ack failed")
	}
}

// begin registers a running consume loop. Close waits for every loop that
// began before it and refuses later ones.
func (c *Consumer) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConsumerClosed
	}
	c.wg.Add(1)
	return nil
}

// drain marks the consumer closed and waits for running loops.
func (c *Consumer) drain() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
}

// Close waits for the consume loop and releases the connection.
func (c *Consumer) Close() error {
	c.drain()
	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}
