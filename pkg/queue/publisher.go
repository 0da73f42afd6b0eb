package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/seoflow/pkg/logger"
)

const contentTypeJSON = "application/json"

// PublishResult tells the caller whether a job actually reached the broker.
type PublishResult struct {
	ID         string
	RoutingKey string
	Durable    bool
	Err        error
}

// Publisher turns JobMessages into persistent envelopes on the main exchange.
type Publisher struct {
	client  *Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// NewPublisher creates a Publisher bound to client.
func NewPublisher(client *Client, opts ...PublisherOption) (*Publisher, error) {
	if client == nil {
		return nil, ErrClientNil
	}

	options := &publisherOptions{
		logger:  slog.Default(),
		metrics: noopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Publisher{
		client:  client,
		ttl:     client.Topology().MessageTTL,
		logger:  options.logger,
		metrics: options.metrics,
		now:     options.now,
	}, nil
}

// Publish enqueues msg and returns its id. It never fails: when the broker
// cannot take the message a "job_local_" fallback id is returned instead and
// the job is NOT durably queued.
func (p *Publisher) Publish(ctx context.Context, msg JobMessage) string {
	return p.PublishResult(ctx, msg).ID
}

// PublishResult is Publish with an explicit durability status.
func (p *Publisher) PublishResult(ctx context.Context, msg JobMessage) (res PublishResult) {
	defer func() {
		if r := recover(); r != nil {
			res = p.fallback(ctx, msg, fmt.Errorf("%w: %v", ErrPublishPanic, r))
		}
	}()

	if !p.client.cfg.Enabled {
		return p.fallback(ctx, msg, ErrQueueDisabled)
	}
	if p.client.cfg.URL == "" {
		return p.fallback(ctx, msg, ErrNotConfigured)
	}

	now := p.now()
	env := JobEnvelope{
		ID:      NewJobID(now),
		Type:    msg.Type,
		Payload: msg.Payload,
		Retries: max(0, msg.Retries),
	}

	body, err := encodeEnvelope(env)
	if err != nil {
		return p.fallback(ctx, msg, err)
	}

	key := RoutingKey(msg)
	if err := p.client.publish(ctx, key, p.publishing(env, body, now)); err != nil {
		return p.fallback(ctx, msg, err)
	}

	p.metrics.ObservePublish(string(msg.Type), true)
	p.logger.DebugContext(ctx, "job published",
		logger.JobID(env.ID),
		logger.JobType(string(env.Type)),
		logger.RoutingKey(key))

	return PublishResult{ID: env.ID, RoutingKey: key, Durable: true}
}

func (p *Publisher) publishing(env JobEnvelope, body []byte, now time.Time) amqp.Publishing {
	pub := amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Type:         string(env.Type),
		Timestamp:    now,
		Body:         body,
	}
	if p.ttl > 0 {
		pub.Expiration = formatMillis(p.ttl)
	}
	return pub
}

func (p *Publisher) fallback(ctx context.Context, msg JobMessage, cause error) PublishResult {
	id := FallbackID(p.now())

	p.metrics.ObservePublish(string(msg.Type), false)
	p.logger.WarnContext(ctx, "job accepted without broker, not enqueued",
		logger.JobID(id),
		logger.JobType(string(msg.Type)),
		logger.Error(cause))

	return PublishResult{ID: id, RoutingKey: RoutingKey(msg), Durable: false, Err: cause}
}

// formatMillis renders d as the AMQP expiration property (milliseconds, as a string).
func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
