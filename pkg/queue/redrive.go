package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/seoflow/pkg/logger"
)

// RedriveReport summarises one Redrive pass.
type RedriveReport struct {
	Republished int
	Parked      int
	Malformed   int
}

// Redriver drains the dead-letter queue and republishes jobs to the main
// exchange with Retries incremented. It is the only place retries grows;
// the Consumer itself never requeues. Jobs that already reached maxRetries,
// and bodies that are not valid envelopes, stay parked in the DLQ.
type Redriver struct {
	client     *Client
	queue      string
	maxRetries int
	logger     *slog.Logger
}

// NewRedriver creates a Redriver for the client's dead-letter queue.
func NewRedriver(client *Client, opts ...RedriverOption) (*Redriver, error) {
	if client == nil {
		return nil, ErrClientNil
	}

	options := &redriverOptions{
		maxRetries: client.cfg.RedriveMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Redriver{
		client:     client,
		queue:      client.Topology().DeadLetterQueue,
		maxRetries: options.maxRetries,
		logger:     options.logger,
	}, nil
}

// Redrive processes up to limit dead-lettered messages (limit <= 0 means all).
// The job keeps its id so status records stay correlated. Parked messages are
// held unacked until the pass ends and then returned to the DLQ, so a single
// pass never sees the same message twice.
func (r *Redriver) Redrive(ctx context.Context, limit int) (report RedriveReport, err error) {
	ch, err := r.client.EnsureTopology(ctx)
	if err != nil {
		return report, err
	}

	var parked []amqp.Delivery
	defer func() {
		// Requeue goes to the head of the queue, so walk backwards to keep DLQ order.
		for i := len(parked) - 1; i >= 0; i-- {
			if nerr := parked[i].Nack(false, true); nerr != nil {
				err = errors.Join(err, nerr)
			}
		}
	}()

	for limit <= 0 || report.Republished+report.Parked+report.Malformed < limit {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		d, ok, gerr := ch.Get(r.queue, false)
		if gerr != nil {
			return report, errors.Join(ErrConnection, gerr)
		}
		if !ok {
			break
		}

		env, derr := DecodeEnvelope(d.Body)
		if derr != nil {
			r.logger.WarnContext(ctx, "malformed dead letter left parked", logger.Error(derr))
			report.Malformed++
			parked = append(parked, d)
			continue
		}

		if env.Retries >= r.maxRetries {
			r.logger.WarnContext(ctx, "job exhausted redrives, left parked",
				logger.JobID(env.ID),
				logger.JobType(string(env.Type)),
				logger.RetryCount(env.Retries))
			report.Parked++
			parked = append(parked, d)
			continue
		}

		env.Retries++
		if perr := r.republish(ctx, env); perr != nil {
			parked = append(parked, d)
			return report, perr
		}
		if aerr := d.Ack(false); aerr != nil {
			return report, errors.Join(ErrConnection, aerr)
		}

		report.Republished++
		r.logger.InfoContext(ctx, "job redriven",
			logger.JobID(env.ID),
			logger.JobType(string(env.Type)),
			logger.RetryCount(env.Retries))
	}

	return report, nil
}

func (r *Redriver) republish(ctx context.Context, env JobEnvelope) error {
	body, err := encodeEnvelope(env)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Type:         string(env.Type),
		Timestamp:    time.Now(),
		Body:         body,
	}
	if ttl := r.client.Topology().MessageTTL; ttl > 0 {
		pub.Expiration = formatMillis(ttl)
	}

	return r.client.publish(ctx, RoutingKey(env.Message()), pub)
}
