package queue

import (
	"context"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the package relies on.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Cancel(consumer string, noWait bool) error
	IsClosed() bool
	Close() error
}

// Connection is the subset of *amqp.Connection the package relies on.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a broker connection for the given URL. It must give up once
// ctx is done.
type Dialer func(ctx context.Context, url string) (Connection, error)

const (
	amqpHeartbeat = 10 * time.Second
	amqpLocale    = "en_US"
)

// DialAMQP dials a RabbitMQ (AMQP 0-9-1) broker. The TCP dial honours ctx
// and the protocol handshake must finish before ctx's deadline.
func DialAMQP(ctx context.Context, url string) (Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: amqpHeartbeat,
		Locale:    amqpLocale,
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			nc, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if deadline, ok := ctx.Deadline(); ok {
				// amqp clears the deadline once the connection is open.
				if err := nc.SetDeadline(deadline); err != nil {
					_ = nc.Close()
					return nil, err
				}
			}
			return nc, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &amqpConnection{conn: conn}, nil
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *amqpConnection) IsClosed() bool {
	return c.conn.IsClosed()
}

func (c *amqpConnection) Close() error {
	return c.conn.Close()
}
