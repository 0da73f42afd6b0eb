package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seoflow/pkg/queue"
)

type recordedPublish struct {
	jobType string
	durable bool
}

type fakeRecorder struct {
	mu        sync.Mutex
	publishes []recordedPublish
	outcomes  []string
}

func (r *fakeRecorder) ObservePublish(jobType string, durable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishes = append(r.publishes, recordedPublish{jobType, durable})
}

func (r *fakeRecorder) ObserveConsume(_, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) Outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func TestNewPublisher(t *testing.T) {
	t.Parallel()

	pub, err := queue.NewPublisher(nil)
	assert.ErrorIs(t, err, queue.ErrClientNil)
	assert.Nil(t, pub)
}

func TestPublisher_Publish(t *testing.T) {
	t.Parallel()

	t.Run("durable publish", func(t *testing.T) {
		t.Parallel()

		client, broker := newTestClient(t, testConfig())
		rec := &fakeRecorder{}
		pub := newTestPublisher(t, client, queue.WithPublisherMetrics(rec))

		res := pub.PublishResult(context.Background(), queue.JobMessage{
			Type:    queue.JobTypeCrawl,
			Payload: map[string]any{"projectId": "proj_42", "url": "https://example.com"},
		})

		require.NoError(t, res.Err)
		assert.True(t, res.Durable)
		assert.False(t, queue.IsFallbackID(res.ID))
		assert.Regexp(t, `^job_[0-9a-z]+_[0-9a-z]+$`, res.ID)
		assert.Equal(t, "crawl.proj_42", res.RoutingKey)

		published := broker.Published()
		require.Len(t, published, 1)
		msg := published[0]
		assert.Equal(t, client.Topology().Exchange, msg.Exchange)
		assert.Equal(t, "crawl.proj_42", msg.RoutingKey)
		assert.Equal(t, amqp.Persistent, msg.Publishing.DeliveryMode)
		assert.Equal(t, "application/json", msg.Publishing.ContentType)
		assert.Equal(t, res.ID, msg.Publishing.MessageId)
		assert.Empty(t, msg.Publishing.Expiration)

		var env map[string]any
		require.NoError(t, json.Unmarshal(msg.Publishing.Body, &env))
		assert.Equal(t, res.ID, env["id"])
		assert.Equal(t, "crawl", env["type"])
		assert.Equal(t, float64(0), env["retries"])
		assert.Equal(t, map[string]any{"projectId": "proj_42", "url": "https://example.com"}, env["payload"])

		assert.Equal(t, 1, broker.Len(client.Topology().Queue))
		assert.Equal(t, []recordedPublish{{"crawl", true}}, rec.publishes)
	})

	t.Run("routes unknown project", func(t *testing.T) {
		t.Parallel()

		client, broker := newTestClient(t, testConfig())
		pub := newTestPublisher(t, client)

		id := pub.Publish(context.Background(), queue.JobMessage{Type: queue.JobTypeCrawl, Payload: map[string]any{}})
		assert.False(t, queue.IsFallbackID(id))

		published := broker.Published()
		require.Len(t, published, 1)
		assert.Equal(t, "crawl.unknown", published[0].RoutingKey)
	})

	t.Run("caller retries are carried over", func(t *testing.T) {
		t.Parallel()

		client, broker := newTestClient(t, testConfig())
		pub := newTestPublisher(t, client)

		pub.Publish(context.Background(), queue.JobMessage{Type: queue.JobTypePlan, Payload: map[string]any{}, Retries: 2})

		msgs := broker.Messages(client.Topology().Queue)
		require.Len(t, msgs, 1)
		env, err := queue.DecodeEnvelope(msgs[0].Publishing.Body)
		require.NoError(t, err)
		assert.Equal(t, 2, env.Retries)
	})

	t.Run("sets expiration when ttl configured", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.MessageTTLMillis = 60000
		client, broker := newTestClient(t, cfg)
		pub := newTestPublisher(t, client)

		pub.Publish(context.Background(), queue.JobMessage{Type: queue.JobTypeGenerate})

		published := broker.Published()
		require.Len(t, published, 1)
		assert.Equal(t, "60000", published[0].Publishing.Expiration)
	})

	t.Run("ids are unique", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, testConfig())
		pub := newTestPublisher(t, client)

		seen := map[string]bool{}
		for range 50 {
			id := pub.Publish(context.Background(), queue.JobMessage{Type: queue.JobTypeCrawl})
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	})
}

func TestPublisher_Fallback(t *testing.T) {
	t.Parallel()

	fixed := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return fixed }

	t.Run("broker unreachable", func(t *testing.T) {
		t.Parallel()

		client, broker := newTestClient(t, testConfig())
		dialErr := errors.New("dial tcp: connection refused")
		broker.FailDial(dialErr)
		rec := &fakeRecorder{}
		pub := newTestPublisher(t, client, queue.WithClock(clock), queue.WithPublisherMetrics(rec))

		res := pub.PublishResult(context.Background(), queue.JobMessage{Type: queue.JobTypeCrawl, Payload: map[string]any{"projectId": "p"}})

		assert.Equal(t, "job_local_loyw3v28", res.ID)
		assert.True(t, queue.IsFallbackID(res.ID))
		assert.False(t, res.Durable)
		assert.ErrorIs(t, res.Err, queue.ErrConnection)
		assert.ErrorIs(t, res.Err, dialErr)
		assert.Equal(t, []recordedPublish{{"crawl", false}}, rec.publishes)
	})

	t.Run("slow broker does not outlive the request deadline", func(t *testing.T) {
		t.Parallel()

		client := queue.NewClient(testConfig(),
			queue.WithDialer(blockingDialer(5*time.Second)),
			queue.WithClientLogger(discardLogger()))
		t.Cleanup(func() { _ = client.Close() })
		pub := newTestPublisher(t, client)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		res := pub.PublishResult(ctx, queue.JobMessage{Type: queue.JobTypeCrawl})
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.False(t, res.Durable)
		assert.True(t, queue.IsFallbackID(res.ID))
	})

	t.Run("no broker configured", func(t *testing.T) {
		t.Parallel()

		client, broker := newTestClient(t, queue.DefaultConfig())
		pub := newTestPublisher(t, client)

		res := pub.PublishResult(context.Background(), queue.JobMessage{Type: queue.JobTypePlan})
		assert.True(t, queue.IsFallbackID(res.ID))
		assert.ErrorIs(t, res.Err, queue.ErrNotConfigured)
		assert.Zero(t, broker.Stats().Dials)
	})

	t.Run("queue disabled", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Enabled = false
		client, broker := newTestClient(t, cfg)
		pub := newTestPublisher(t, client)

		res := pub.PublishResult(context.Background(), queue.JobMessage{Type: queue.JobTypePlan})
		assert.True(t, queue.IsFallbackID(res.ID))
		assert.ErrorIs(t, res.Err, queue.ErrQueueDisabled)
		assert.Zero(t, broker.Stats().Dials)
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		t.Parallel()

		client, broker := newTestClient(t, testConfig())
		pub := newTestPublisher(t, client)

		res := pub.PublishResult(context.Background(), queue.JobMessage{
			Type:    queue.JobTypeCrawl,
			Payload: map[string]any{"fn": func() {}},
		})
		assert.True(t, queue.IsFallbackID(res.ID))
		assert.Error(t, res.Err)
		assert.Empty(t, broker.Published())
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, testConfig())
		pub := newTestPublisher(t, client)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		id := pub.Publish(ctx, queue.JobMessage{Type: queue.JobTypeCrawl})
		assert.True(t, queue.IsFallbackID(id))
	})

	t.Run("never panics", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, testConfig())
		pub := newTestPublisher(t, client)

		assert.NotPanics(t, func() {
			//nolint:staticcheck // nil context is exactly what is being exercised
			id := pub.Publish(nil, queue.JobMessage{})
			assert.NotEmpty(t, id)
		})
	})

	t.Run("closed client", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, testConfig())
		pub := newTestPublisher(t, client)
		require.NoError(t, client.Close())

		res := pub.PublishResult(context.Background(), queue.JobMessage{Type: queue.JobTypeCrawl})
		assert.True(t, queue.IsFallbackID(res.ID))
		assert.ErrorIs(t, res.Err, queue.ErrClientClosed)
	})
}
