package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/seoflow/pkg/logger"
)

// Consumer pulls envelopes from the main queue and hands them to a Handler.
type Consumer struct {
	client   *Client
	queue    string
	prefetch int
	tag      string
	logger   *slog.Logger
	metrics  MetricsRecorder
	running  atomic.Bool
}

// NewConsumer creates a Consumer for the client's main queue.
func NewConsumer(client *Client, opts ...ConsumerOption) (*Consumer, error) {
	if client == nil {
		return nil, ErrClientNil
	}

	options := &consumerOptions{
		prefetch: client.Topology().Prefetch,
		tag:      "seoflow-" + uuid.NewString(),
		logger:   slog.Default(),
		metrics:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Consumer{
		client:   client,
		queue:    client.Topology().Queue,
		prefetch: max(1, options.prefetch),
		tag:      options.tag,
		logger:   options.logger,
		metrics:  options.metrics,
	}, nil
}

// Tag returns the consumer tag registered with the broker.
func (c *Consumer) Tag() string {
	return c.tag
}

// Consume blocks, delivering messages to h until ctx is cancelled (returns nil)
// or the broker closes the delivery stream (returns ErrDeliveriesClosed).
// At most prefetch handlers run concurrently. Every delivery is either acked
// after h returns nil or rejected without requeue, which dead-letters it.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrConsumerRunning
	}
	defer c.running.Store(false)

	ch, err := c.client.EnsureTopology(ctx)
	if err != nil {
		return err
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return errors.Join(ErrConnection, err)
	}

	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return errors.Join(ErrConnection, err)
	}

	c.logger.InfoContext(ctx, "consumer started",
		logger.Queue(c.queue),
		logger.ConsumerTag(c.tag),
		slog.Int("prefetch", c.prefetch))

	// Handlers outlive cancellation of ctx so in-flight jobs finish during shutdown.
	handlerCtx := context.WithoutCancel(ctx)
	slots := make(chan struct{}, c.prefetch)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			if err := ch.Cancel(c.tag, false); err != nil {
				c.logger.Warn("failed to cancel consumer", logger.ConsumerTag(c.tag), logger.Error(err))
			}
			wg.Wait()
			c.logger.Info("consumer stopped", logger.ConsumerTag(c.tag))
			return nil

		case d, ok := <-deliveries:
			if !ok {
				wg.Wait()
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("delivery channel closed by broker", logger.ConsumerTag(c.tag))
				return ErrDeliveriesClosed
			}

			slots <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-slots }()
				c.handle(handlerCtx, d, h)
			}(d)
		}
	}
}

// Run adapts Consume to errgroup.Go.
func (c *Consumer) Run(ctx context.Context, h Handler) func() error {
	return func() error {
		return c.Consume(ctx, h)
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	start := time.Now()

	env, err := DecodeEnvelope(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "malformed envelope, dead-lettering",
			slog.String("message_id", d.MessageId),
			logger.RoutingKey(d.RoutingKey),
			logger.Error(err))
		c.reject(ctx, d)
		c.metrics.ObserveConsume(d.Type, OutcomeMalformed, time.Since(start))
		return
	}

	ctx = logger.WithJob(ctx, env.ID, string(env.Type))
	if err := callHandler(ctx, h, env); err != nil {
		c.logger.ErrorContext(ctx, "job failed, dead-lettering",
			logger.JobID(env.ID),
			logger.JobType(string(env.Type)),
			logger.RetryCount(env.Retries),
			logger.Duration(time.Since(start)),
			logger.Error(err))
		c.reject(ctx, d)
		c.metrics.ObserveConsume(string(env.Type), OutcomeDeadLettered, time.Since(start))
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.ErrorContext(ctx, "failed to ack delivery",
			logger.JobID(env.ID),
			logger.Error(err))
		return
	}

	c.metrics.ObserveConsume(string(env.Type), OutcomeAcked, time.Since(start))
	c.logger.DebugContext(ctx, "job completed",
		logger.JobID(env.ID),
		logger.JobType(string(env.Type)),
		logger.Duration(time.Since(start)))
}

// reject never requeues: the queue's dead-letter exchange takes the message.
func (c *Consumer) reject(ctx context.Context, d amqp.Delivery) {
	if err := d.Reject(false); err != nil {
		c.logger.ErrorContext(ctx, "failed to reject delivery",
			slog.Uint64("delivery_tag", d.DeliveryTag),
			logger.Error(err))
	}
}
