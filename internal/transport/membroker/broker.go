// Package membroker is an in-process pub/sub broker implementing the
// transport interfaces. It backs single-process setups and tests, and can
// simulate handshake failures and transport faults.
package membroker

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dyluth/blueprints/internal/transport"
)

// ErrSevered is the fault reported by links cut with Sever.
var ErrSevered = errors.New("membroker: link severed")

// Message is one publish observed by the broker.
type Message struct {
	Destination string
	Payload     []byte
}

// Option configures a Broker.
type Option func(*Broker)

// WithRelay rewrites publish destinations before fan-out. Returning false
// delivers the message to the original destination only.
func WithRelay(relay func(destination string) (string, bool)) Option {
	return func(b *Broker) { b.relay = relay }
}

// AppToTopic maps /app/... destinations onto /topic/..., mirroring what the
// relay server does for points.
func AppToTopic(destination string) (string, bool) {
	if rest, ok := strings.CutPrefix(destination, "/app/"); ok {
		return "/topic/" + rest, true
	}
	return "", false
}

// Broker fans published payloads out to every feed subscribed to the
// destination.
type Broker struct {
	relay func(string) (string, bool)

	mu        sync.Mutex
	subs      map[string]map[*transport.Pipe]struct{}
	conns     map[*conn]struct{}
	dialErr   error
	dials     int
	published []Message
}

// New creates an empty broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		subs:  make(map[string]map[*transport.Pipe]struct{}),
		conns: make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial implements transport.Dialer.
func (b *Broker) Dial(ctx context.Context) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	c := &conn{broker: b, done: make(chan struct{}), feeds: make(map[*transport.Pipe]string)}
	b.conns[c] = struct{}{}
	return c, nil
}

// FailDials makes subsequent handshakes fail with err; nil restores them.
func (b *Broker) FailDials(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErr = err
}

// Dials returns the number of handshakes attempted.
func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Sever faults every live link, as a dropped socket would.
func (b *Broker) Sever() {
	b.mu.Lock()
	conns := make([]*conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.fail(ErrSevered)
	}
}

// Inject delivers payload on topic as if another client had published it.
func (b *Broker) Inject(topic string, payload []byte) {
	b.deliver(topic, payload)
}

// Published returns every publish seen so far, in order.
func (b *Broker) Published() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.published))
	copy(out, b.published)
	return out
}

// Subscribers returns the number of live feeds on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *Broker) publish(destination string, payload []byte) {
	b.mu.Lock()
	b.published = append(b.published, Message{Destination: destination, Payload: payload})
	b.mu.Unlock()

	target := destination
	if b.relay != nil {
		if rewritten, ok := b.relay(destination); ok {
			target = rewritten
		}
	}
	b.deliver(target, payload)
}

func (b *Broker) deliver(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.subs[topic] {
		p.Push(payload)
	}
}

func (b *Broker) addFeed(topic string, p *transport.Pipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*transport.Pipe]struct{})
	}
	b.subs[topic][p] = struct{}{}
}

func (b *Broker) removeFeed(topic string, p *transport.Pipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], p)
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

func (b *Broker) removeConn(c *conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, c)
}

type conn struct {
	broker *Broker

	mu     sync.Mutex
	feeds  map[*transport.Pipe]string
	done   chan struct{}
	err    error
	closed bool
}

func (c *conn) Subscribe(ctx context.Context, topic string) (transport.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, transport.ErrNotConnected
	}

	var p *transport.Pipe
	p = transport.NewPipe(func() {
		c.mu.Lock()
		delete(c.feeds, p)
		c.mu.Unlock()
		c.broker.removeFeed(topic, p)
	})
	c.feeds[p] = topic
	c.broker.addFeed(topic, p)
	return p, nil
}

func (c *conn) Publish(ctx context.Context, destination string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transport.ErrNotConnected
	}

	c.broker.publish(destination, payload)
	return nil
}

func (c *conn) Done() <-chan struct{} { return c.done }

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *conn) Close() error {
	c.fail(nil)
	return nil
}

func (c *conn) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = err
	feeds := c.feeds
	c.feeds = make(map[*transport.Pipe]string)
	c.mu.Unlock()

	for p, topic := range feeds {
		c.broker.removeFeed(topic, p)
		p.Terminate()
	}
	c.broker.removeConn(c)
	close(c.done)
}
