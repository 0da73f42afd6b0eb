package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeKindTopic = "topic"
	bindAll           = "#"

	argDeadLetterExchange = "x-dead-letter-exchange"
)

// Client owns the single broker connection and channel of a process.
// It is constructed once at startup and shared by Publisher, Consumer and
// Redriver; nothing is dialed until the first call that needs the broker.
type Client struct {
	cfg      Config
	topology Topology
	dial     Dialer
	logger   *slog.Logger

	mu     sync.Mutex
	pubMu  sync.Mutex
	conn   Connection
	ch     Channel
	closed bool
}

// NewClient creates a Client. No network I/O happens here.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	options := &clientOptions{
		dial:   DialAMQP,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Client{
		cfg:      cfg,
		topology: cfg.Topology(),
		dial:     options.dial,
		logger:   options.logger,
	}
}

// Topology returns the resolved broker object names.
func (c *Client) Topology() Topology {
	return c.topology
}

// Enabled reports whether publishing to the broker should be attempted at all.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.URL != ""
}

// Healthcheck reports whether the broker is reachable. A disabled or
// unconfigured client always reports healthy.
func (c *Client) Healthcheck(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	_, err := c.EnsureTopology(ctx)
	return err
}

// EnsureTopology connects on first use, declares exchanges, queues and
// bindings, and returns the shared channel. Subsequent calls return the same
// channel without touching the broker. A closed channel or connection is
// replaced transparently on the next call.
func (c *Client) EnsureTopology(ctx context.Context) (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}

	if c.ch != nil && !c.ch.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.ch, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(ErrConnection, err)
	}

	if !c.cfg.Enabled {
		return nil, errors.Join(ErrConnection, ErrQueueDisabled)
	}
	if c.cfg.URL == "" {
		return nil, errors.Join(ErrConnection, ErrNotConfigured)
	}

	c.teardownLocked()

	conn, err := c.dialLocked(ctx)
	if err != nil {
		return nil, errors.Join(ErrConnection, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Join(ErrConnection, err)
	}

	if err := declareTopology(ch, c.topology); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	c.conn = conn
	c.ch = ch

	c.logger.Info("queue topology ready",
		slog.String("exchange", c.topology.Exchange),
		slog.String("dead_letter_exchange", c.topology.DeadLetterExchange),
		slog.String("queue", c.topology.Queue),
		slog.String("dead_letter_queue", c.topology.DeadLetterQueue))

	return ch, nil
}

// dialLocked bounds the dial by ctx and the configured dial timeout.
func (c *Client) dialLocked(ctx context.Context) (Connection, error) {
	timeout := c.cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := c.dial(ctx, c.cfg.URL)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}
	return conn, nil
}

// Close tears down the channel and connection. It is safe to call repeatedly.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return c.teardownLocked()
}

func (c *Client) teardownLocked() error {
	var errs []error
	if c.ch != nil && !c.ch.IsClosed() {
		errs = append(errs, c.ch.Close())
	}
	if c.conn != nil && !c.conn.IsClosed() {
		errs = append(errs, c.conn.Close())
	}
	c.ch = nil
	c.conn = nil
	return errors.Join(errs...)
}

// publish sends one message to the main exchange. Publishes are serialized
// because an AMQP channel must not interleave frames from concurrent publishers.
func (c *Client) publish(ctx context.Context, key string, msg amqp.Publishing) error {
	ch, err := c.EnsureTopology(ctx)
	if err != nil {
		return err
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	if err := ch.PublishWithContext(ctx, c.topology.Exchange, key, false, false, msg); err != nil {
		return errors.Join(ErrPublish, err)
	}
	return nil
}

func declareTopology(ch Channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, exchangeKindTopic, true, false, false, false, nil); err != nil {
		return errors.Join(ErrDeclareTopology, fmt.Errorf("exchange %q: %w", t.Exchange, err))
	}
	if err := ch.ExchangeDeclare(t.DeadLetterExchange, exchangeKindTopic, true, false, false, false, nil); err != nil {
		return errors.Join(ErrDeclareTopology, fmt.Errorf("exchange %q: %w", t.DeadLetterExchange, err))
	}

	args := amqp.Table{argDeadLetterExchange: t.DeadLetterExchange}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return errors.Join(ErrDeclareTopology, fmt.Errorf("queue %q: %w", t.Queue, err))
	}
	if err := ch.QueueBind(t.Queue, bindAll, t.Exchange, false, nil); err != nil {
		return errors.Join(ErrDeclareTopology, fmt.Errorf("bind %q to %q: %w", t.Queue, t.Exchange, err))
	}

	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return errors.Join(ErrDeclareTopology, fmt.Errorf("queue %q: %w", t.DeadLetterQueue, err))
	}
	if err := ch.QueueBind(t.DeadLetterQueue, bindAll, t.DeadLetterExchange, false, nil); err != nil {
		return errors.Join(ErrDeclareTopology, fmt.Errorf("bind %q to %q: %w", t.DeadLetterQueue, t.DeadLetterExchange, err))
	}

	return nil
}
