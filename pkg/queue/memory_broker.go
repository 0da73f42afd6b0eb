package queue

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MemoryMessage is a message as stored or published by MemoryBroker.
type MemoryMessage struct {
	Exchange    string
	RoutingKey  string
	Publishing  amqp.Publishing
	Redelivered bool
	enqueuedAt  time.Time
}

// MemoryStats counts broker-side outcomes.
type MemoryStats struct {
	Dials        int
	Published    int
	Acked        int
	Rejected     int
	Nacked       int
	Requeued     int
	DeadLettered int
	Expired      int
	Dropped      int
}

// MemoryBroker is an in-process AMQP 0-9-1 look-alike for testing and local
// development. It supports direct, fanout and topic exchanges, queue
// dead-lettering through x-dead-letter-exchange, per-consumer prefetch,
// ack/nack/reject, basic.get and message expiration.
type MemoryBroker struct {
	mu        sync.Mutex
	exchanges map[string]*memExchange
	queues    map[string]*memQueue
	unacked   map[uint64]*memPending
	conns     []*memConnection
	published []MemoryMessage
	stats     MemoryStats
	dialErr   error
	nextTag   uint64
	nextName  int
	now       func() time.Time
}

type memExchange struct {
	name     string
	kind     string
	bindings []memBinding
}

type memBinding struct {
	queue   string
	pattern string
}

type memQueue struct {
	name      string
	args      amqp.Table
	ready     []*MemoryMessage
	consumers []*memConsumer
	next      int
}

type memPending struct {
	msg      *MemoryMessage
	queue    *memQueue
	ch       *memChannel
	consumer *memConsumer
}

type memConsumer struct {
	tag        string
	ch         *memChannel
	queue      *memQueue
	prefetch   int
	inFlight   int
	deliveries chan amqp.Delivery
	closed     bool
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		exchanges: map[string]*memExchange{"": {name: "", kind: amqp.ExchangeDirect}},
		queues:    make(map[string]*memQueue),
		unacked:   make(map[uint64]*memPending),
		now:       time.Now,
	}
}

// Dial satisfies Dialer. The url is ignored.
func (b *MemoryBroker) Dial(ctx context.Context, _ string) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dialErr != nil {
		return nil, b.dialErr
	}
	b.stats.Dials++

	conn := &memConnection{broker: b}
	b.conns = append(b.conns, conn)
	return conn, nil
}

// FailDial makes every following Dial return err. Pass nil to recover.
func (b *MemoryBroker) FailDial(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErr = err
}

// SetClock overrides the time source used for message expiration.
func (b *MemoryBroker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
}

// Disconnect closes every open connection, as if the broker went away.
func (b *MemoryBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		b.closeConnLocked(conn)
	}
	b.conns = nil
}

// Messages returns copies of the ready (undelivered) messages of a queue.
func (b *MemoryBroker) Messages(queue string) []MemoryMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queue]
	if !ok {
		return nil
	}
	out := make([]MemoryMessage, 0, len(q.ready))
	for _, m := range q.ready {
		out = append(out, *m)
	}
	return out
}

// Len returns the number of ready messages in a queue.
func (b *MemoryBroker) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok {
		return len(q.ready)
	}
	return 0
}

// Unacked returns the number of delivered but unsettled messages of a queue.
func (b *MemoryBroker) Unacked(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.unacked {
		if p.queue.name == queue {
			n++
		}
	}
	return n
}

// Published returns every message accepted by basic.publish, in order.
func (b *MemoryBroker) Published() []MemoryMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.published)
}

// Stats returns a snapshot of the broker counters.
func (b *MemoryBroker) Stats() MemoryStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// ExchangeKind reports the kind of a declared exchange.
func (b *MemoryBroker) ExchangeKind(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ex, ok := b.exchanges[name]
	if !ok {
		return "", false
	}
	return ex.kind, true
}

// QueueArgs returns the arguments a queue was declared with.
func (b *MemoryBroker) QueueArgs(name string) (amqp.Table, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return nil, false
	}
	return q.args, true
}

// Bindings lists "queue:pattern" pairs bound to an exchange.
func (b *MemoryBroker) Bindings(exchange string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ex, ok := b.exchanges[exchange]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ex.bindings))
	for _, bnd := range ex.bindings {
		out = append(out, bnd.queue+":"+bnd.pattern)
	}
	return out
}

func (b *MemoryBroker) routeLocked(exchange, key string, pub amqp.Publishing) error {
	ex, ok := b.exchanges[exchange]
	if !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no exchange '%s'", exchange)}
	}

	var targets []string
	if exchange == "" {
		if _, ok := b.queues[key]; ok {
			targets = append(targets, key)
		}
	}
	for _, bnd := range ex.bindings {
		if bindingMatches(ex.kind, bnd.pattern, key) && !slices.Contains(targets, bnd.queue) {
			targets = append(targets, bnd.queue)
		}
	}

	if len(targets) == 0 {
		b.stats.Dropped++
		return nil
	}

	for _, name := range targets {
		q := b.queues[name]
		p := pub
		p.Body = slices.Clone(pub.Body)
		q.ready = append(q.ready, &MemoryMessage{
			Exchange:   exchange,
			RoutingKey: key,
			Publishing: p,
			enqueuedAt: b.now(),
		})
		b.dispatchLocked(q)
	}
	return nil
}

func (b *MemoryBroker) dispatchLocked(q *memQueue) {
	for len(q.ready) > 0 {
		c := q.nextConsumer()
		if c == nil {
			return
		}

		msg := q.ready[0]
		q.ready = q.ready[1:]

		if b.expiredLocked(q, msg) {
			b.stats.Expired++
			b.deadLetterLocked(q, msg, "expired")
			continue
		}

		b.nextTag++
		tag := b.nextTag
		b.unacked[tag] = &memPending{msg: msg, queue: q, ch: c.ch, consumer: c}
		c.inFlight++
		c.deliveries <- newDelivery(c.ch, c.tag, tag, msg)
	}
}

func (b *MemoryBroker) expiredLocked(q *memQueue, msg *MemoryMessage) bool {
	ttl, ok := messageTTL(q, msg)
	if !ok {
		return false
	}
	return b.now().Sub(msg.enqueuedAt) >= ttl
}

func (b *MemoryBroker) deadLetterLocked(q *memQueue, msg *MemoryMessage, reason string) {
	dlx, ok := q.args[argDeadLetterExchange].(string)
	if !ok {
		b.stats.Dropped++
		return
	}

	key := msg.RoutingKey
	if rk, ok := q.args["x-dead-letter-routing-key"].(string); ok && rk != "" {
		key = rk
	}

	pub := msg.Publishing
	headers := amqp.Table{}
	for k, v := range pub.Headers {
		headers[k] = v
	}
	if _, seen := headers["x-first-death-reason"]; !seen {
		headers["x-first-death-reason"] = reason
		headers["x-first-death-queue"] = q.name
		headers["x-first-death-exchange"] = msg.Exchange
	}
	pub.Headers = headers
	pub.Expiration = ""

	b.stats.DeadLettered++
	_ = b.routeLocked(dlx, key, pub)
}

func (b *MemoryBroker) settleLocked(ch *memChannel, tag uint64, multiple bool, settle func(*memPending)) error {
	if ch.closed {
		return amqp.ErrClosed
	}

	tags := []uint64{tag}
	if multiple {
		tags = tags[:0]
		for t, p := range b.unacked {
			if p.ch == ch && t <= tag {
				tags = append(tags, t)
			}
		}
		slices.Sort(tags)
	}

	for _, t := range tags {
		p, ok := b.unacked[t]
		if !ok || p.ch != ch {
			return &amqp.Error{Code: amqp.PreconditionFailed, Reason: fmt.Sprintf("PRECONDITION_FAILED - unknown delivery tag %d", t)}
		}
		delete(b.unacked, t)
		if p.consumer != nil {
			p.consumer.inFlight--
		}
		settle(p)
		b.dispatchLocked(p.queue)
	}
	return nil
}

func (b *MemoryBroker) requeueLocked(p *memPending) {
	p.msg.Redelivered = true
	p.queue.ready = append([]*MemoryMessage{p.msg}, p.queue.ready...)
	b.stats.Requeued++
}

func (b *MemoryBroker) closeChannelLocked(ch *memChannel) {
	if ch.closed {
		return
	}
	ch.closed = true

	for _, c := range ch.consumers {
		b.removeConsumerLocked(c)
	}

	var touched []*memQueue
	for t, p := range b.unacked {
		if p.ch != ch {
			continue
		}
		delete(b.unacked, t)
		b.requeueLocked(p)
		if !slices.Contains(touched, p.queue) {
			touched = append(touched, p.queue)
		}
	}
	for _, q := range touched {
		b.dispatchLocked(q)
	}
}

func (b *MemoryBroker) closeConnLocked(conn *memConnection) {
	if conn.closed {
		return
	}
	conn.closed = true
	for _, ch := range conn.channels {
		b.closeChannelLocked(ch)
	}
}

func (b *MemoryBroker) removeConsumerLocked(c *memConsumer) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.deliveries)
	c.queue.consumers = slices.DeleteFunc(c.queue.consumers, func(x *memConsumer) bool { return x == c })
	delete(c.ch.consumers, c.tag)
}

func (q *memQueue) nextConsumer() *memConsumer {
	n := len(q.consumers)
	for i := range n {
		c := q.consumers[(q.next+i)%n]
		if c.inFlight < c.capacity() {
			q.next = (q.next + i + 1) % n
			return c
		}
	}
	return nil
}

func (c *memConsumer) capacity() int {
	if c.prefetch > 0 {
		return c.prefetch
	}
	return cap(c.deliveries)
}

func messageTTL(q *memQueue, msg *MemoryMessage) (time.Duration, bool) {
	if msg.Publishing.Expiration != "" {
		if ms, err := strconv.ParseInt(msg.Publishing.Expiration, 10, 64); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond, true
		}
	}
	switch v := q.args["x-message-ttl"].(type) {
	case int:
		return time.Duration(v) * time.Millisecond, true
	case int32:
		return time.Duration(v) * time.Millisecond, true
	case int64:
		return time.Duration(v) * time.Millisecond, true
	}
	return 0, false
}

func newDelivery(ack amqp.Acknowledger, consumerTag string, tag uint64, msg *MemoryMessage) amqp.Delivery {
	p := msg.Publishing
	return amqp.Delivery{
		Acknowledger:    ack,
		Headers:         p.Headers,
		ContentType:     p.ContentType,
		ContentEncoding: p.ContentEncoding,
		DeliveryMode:    p.DeliveryMode,
		Priority:        p.Priority,
		CorrelationId:   p.CorrelationId,
		ReplyTo:         p.ReplyTo,
		Expiration:      p.Expiration,
		MessageId:       p.MessageId,
		Timestamp:       p.Timestamp,
		Type:            p.Type,
		AppId:           p.AppId,
		ConsumerTag:     consumerTag,
		DeliveryTag:     tag,
		Redelivered:     msg.Redelivered,
		Exchange:        msg.Exchange,
		RoutingKey:      msg.RoutingKey,
		Body:            p.Body,
	}
}

func bindingMatches(kind, pattern, key string) bool {
	switch kind {
	case amqp.ExchangeFanout:
		return true
	case amqp.ExchangeTopic:
		return topicMatch(strings.Split(pattern, "."), strings.Split(key, "."))
	default:
		return pattern == key
	}
}

// topicMatch implements AMQP topic semantics: "*" matches exactly one word,
// "#" matches zero or more words.
func topicMatch(pattern, words []string) bool {
	if len(pattern) == 0 {
		return len(words) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(words); i++ {
			if topicMatch(pattern[1:], words[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(words) > 0 && topicMatch(pattern[1:], words[1:])
	default:
		return len(words) > 0 && pattern[0] == words[0] && topicMatch(pattern[1:], words[1:])
	}
}

type memConnection struct {
	broker   *MemoryBroker
	channels []*memChannel
	closed   bool
}

func (c *memConnection) Channel() (Channel, error) {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &memChannel{broker: b, consumers: make(map[string]*memConsumer)}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *memConnection) IsClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed
}

func (c *memConnection) Close() error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return amqp.ErrClosed
	}
	b.closeConnLocked(c)
	b.conns = slices.DeleteFunc(b.conns, func(x *memConnection) bool { return x == c })
	return nil
}

type memChannel struct {
	broker    *MemoryBroker
	prefetch  int
	consumers map[string]*memConsumer
	closed    bool
}

func (ch *memChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if ex, ok := b.exchanges[name]; ok {
		if ex.kind != kind {
			return &amqp.Error{Code: amqp.PreconditionFailed, Reason: fmt.Sprintf("PRECONDITION_FAILED - inequivalent arg 'type' for exchange '%s'", name)}
		}
		return nil
	}
	b.exchanges[name] = &memExchange{name: name, kind: kind}
	return nil
}

func (ch *memChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.Queue{}, amqp.ErrClosed
	}
	if name == "" {
		b.nextName++
		name = fmt.Sprintf("amq.gen-%d", b.nextName)
	}

	if q, ok := b.queues[name]; ok {
		if fmt.Sprint(q.args[argDeadLetterExchange]) != fmt.Sprint(args[argDeadLetterExchange]) {
			return amqp.Queue{}, &amqp.Error{Code: amqp.PreconditionFailed, Reason: fmt.Sprintf("PRECONDITION_FAILED - inequivalent arg '%s' for queue '%s'", argDeadLetterExchange, name)}
		}
		return amqp.Queue{Name: name, Messages: len(q.ready), Consumers: len(q.consumers)}, nil
	}

	b.queues[name] = &memQueue{name: name, args: args}
	return amqp.Queue{Name: name}, nil
}

func (ch *memChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	ex, ok := b.exchanges[exchange]
	if !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no exchange '%s'", exchange)}
	}
	if _, ok := b.queues[name]; !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no queue '%s'", name)}
	}

	bnd := memBinding{queue: name, pattern: key}
	if !slices.Contains(ex.bindings, bnd) {
		ex.bindings = append(ex.bindings, bnd)
	}
	return nil
}

func (ch *memChannel) Qos(prefetchCount, _ int, _ bool) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	ch.prefetch = max(0, prefetchCount)
	return nil
}

func (ch *memChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if err := b.routeLocked(exchange, key, msg); err != nil {
		return err
	}

	b.stats.Published++
	msg.Body = slices.Clone(msg.Body)
	b.published = append(b.published, MemoryMessage{Exchange: exchange, RoutingKey: key, Publishing: msg, enqueuedAt: b.now()})
	return nil
}

func (ch *memChannel) Consume(queue, consumer string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return nil, amqp.ErrClosed
	}
	if autoAck {
		return nil, fmt.Errorf("memory broker: autoAck consumers are not supported")
	}
	q, ok := b.queues[queue]
	if !ok {
		return nil, &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no queue '%s'", queue)}
	}
	if consumer == "" {
		b.nextName++
		consumer = fmt.Sprintf("amq.ctag-%d", b.nextName)
	}
	if _, dup := ch.consumers[consumer]; dup {
		return nil, &amqp.Error{Code: amqp.NotAllowed, Reason: fmt.Sprintf("NOT_ALLOWED - attempt to reuse consumer tag '%s'", consumer)}
	}

	buf := 1024
	if ch.prefetch > 0 {
		buf = ch.prefetch
	}
	c := &memConsumer{
		tag:        consumer,
		ch:         ch,
		queue:      q,
		prefetch:   ch.prefetch,
		deliveries: make(chan amqp.Delivery, buf),
	}
	ch.consumers[consumer] = c
	q.consumers = append(q.consumers, c)
	b.dispatchLocked(q)

	return c.deliveries, nil
}

func (ch *memChannel) Get(queue string, autoAck bool) (amqp.Delivery, bool, error) {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.Delivery{}, false, amqp.ErrClosed
	}
	q, ok := b.queues[queue]
	if !ok {
		return amqp.Delivery{}, false, &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no queue '%s'", queue)}
	}

	for len(q.ready) > 0 {
		msg := q.ready[0]
		q.ready = q.ready[1:]

		if b.expiredLocked(q, msg) {
			b.stats.Expired++
			b.deadLetterLocked(q, msg, "expired")
			continue
		}

		b.nextTag++
		tag := b.nextTag
		if !autoAck {
			b.unacked[tag] = &memPending{msg: msg, queue: q, ch: ch}
		}
		d := newDelivery(ch, "", tag, msg)
		d.MessageCount = uint32(len(q.ready))
		return d, true, nil
	}
	return amqp.Delivery{}, false, nil
}

func (ch *memChannel) Cancel(consumer string, _ bool) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if c, ok := ch.consumers[consumer]; ok {
		b.removeConsumerLocked(c)
	}
	return nil
}

func (ch *memChannel) IsClosed() bool {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	return ch.closed
}

func (ch *memChannel) Close() error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	b.closeChannelLocked(ch)
	return nil
}

// Ack implements amqp.Acknowledger.
func (ch *memChannel) Ack(tag uint64, multiple bool) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.settleLocked(ch, tag, multiple, func(*memPending) {
		b.stats.Acked++
	})
}

// Nack implements amqp.Acknowledger.
func (ch *memChannel) Nack(tag uint64, multiple, requeue bool) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.settleLocked(ch, tag, multiple, func(p *memPending) {
		b.stats.Nacked++
		if requeue {
			b.requeueLocked(p)
			return
		}
		b.deadLetterLocked(p.queue, p.msg, "rejected")
	})
}

// Reject implements amqp.Acknowledger.
func (ch *memChannel) Reject(tag uint64, requeue bool) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.settleLocked(ch, tag, false, func(p *memPending) {
		b.stats.Rejected++
		if requeue {
			b.requeueLocked(p)
			return
		}
		b.deadLetterLocked(p.queue, p.msg, "rejected")
	})
}
