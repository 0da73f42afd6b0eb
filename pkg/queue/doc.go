// Package queue moves crawl, discovery, plan, generate and publish work off
// the request path through a durable AMQP topic exchange, and quarantines
// poison messages in a dead-letter queue.
//
// The package is organised around four components that share one broker
// connection owned by a Client:
//
//   - Client: lazily dials the broker and declares the topology
//   - Publisher: wraps a JobMessage into a JobEnvelope and publishes it
//   - Consumer: delivers envelopes to a Handler and acks or dead-letters them
//   - Redriver: republishes dead-lettered jobs with an incremented retry count
//
// # Topology
//
// EnsureTopology declares two durable topic exchanges (main and dead-letter),
// a main queue whose x-dead-letter-exchange argument points at the
// dead-letter exchange, and a dead-letter queue. Both queues are bound with
// the catch-all pattern "#", so every routing key the Publisher produces
// ends up on the main queue. Declarations are idempotent and the resulting
// channel is reused for the life of the Client.
//
// # Delivery guarantees
//
// Delivery is at-least-once. The Consumer acknowledges a message only after
// the Handler returns nil, and rejects it without requeue on any failure
// (including malformed JSON and handler panics), which makes the broker route
// it to the dead-letter queue. The Consumer never requeues; retrying a failed
// job is an explicit decision made by the Redriver or an operator.
//
// # Degraded mode
//
// Publish never returns an error. When the broker is disabled, not
// configured or unreachable it returns a fallback id prefixed with
// "job_local_" so request handlers can respond optimistically. Callers that
// care about durability use PublishResult and inspect the Durable flag.
//
// # Usage
//
//	client := queue.NewClient(cfg, queue.WithDialer(queue.DialAMQP))
//	defer client.Close()
//
//	pub, _ := queue.NewPublisher(client)
//	id := pub.Publish(ctx, queue.JobMessage{
//	    Type:    queue.JobTypeCrawl,
//	    Payload: map[string]any{"projectId": "proj_42"},
//	})
//
//	consumer, _ := queue.NewConsumer(client)
//	err := consumer.Consume(ctx, func(ctx context.Context, env queue.JobEnvelope) error {
//	    return crawl(ctx, env.Payload)
//	})
//
// # Testing
//
// MemoryBroker implements the same Connection and Channel interfaces as the
// AMQP adapter, including topic routing, dead-lettering, prefetch and
// per-message expiration, so the whole pipeline can run in unit tests.
package queue
