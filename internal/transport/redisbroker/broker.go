// Package redisbroker carries blueprint topics over Redis Pub/Sub. Topic and
// destination strings are used verbatim as channel names, so clients on this
// backend share channels with the web-socket relay.
package redisbroker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/blueprints/internal/transport"
	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// DefaultHealthInterval is how often a live link pings Redis to detect
// faults.
const DefaultHealthInterval = 2 * time.Second

// Dialer opens Redis-backed links.
type Dialer struct {
	opts           *redis.Options
	healthInterval time.Duration
}

// NewDialer creates a dialer for the given Redis options. A healthInterval
// <= 0 selects DefaultHealthInterval.
func NewDialer(opts *redis.Options, healthInterval time.Duration) *Dialer {
	if healthInterval <= 0 {
		healthInterval = DefaultHealthInterval
	}
	return &Dialer{opts: opts, healthInterval: healthInterval}
}

// NewDialerFromURL parses a redis:// URL.
func NewDialerFromURL(url string, healthInterval time.Duration) (*Dialer, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewDialer(opts, healthInterval), nil
}

// Dial creates a client and completes the handshake with a PING.
func (d *Dialer) Dial(ctx context.Context) (transport.Conn, error) {
	rdb := redis.NewClient(d.opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", d.opts.Addr, err)
	}

	c := &Conn{
		rdb:   rdb,
		done:  make(chan struct{}),
		feeds: make(map[*Feed]struct{}),
	}
	go c.monitor(d.healthInterval)
	return c, nil
}

// Conn is one Redis-backed link. Safe for concurrent use.
type Conn struct {
	rdb *redis.Client

	mu     sync.Mutex
	feeds  map[*Feed]struct{}
	done   chan struct{}
	err    error
	closed bool
}

// Subscribe subscribes to topic and waits for Redis to confirm.
func (c *Conn) Subscribe(ctx context.Context, topic string) (transport.Feed, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, transport.ErrNotConnected
	}
	c.mu.Unlock()

	pubsub := c.rdb.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	f := &Feed{
		conn:     c,
		topic:    topic,
		pubsub:   pubsub,
		messages: make(chan []byte, 16),
		stop:     make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		pubsub.Close()
		return nil, transport.ErrNotConnected
	}
	c.feeds[f] = struct{}{}
	c.mu.Unlock()

	go f.pump()
	return f, nil
}

// Publish publishes payload on the destination channel.
func (c *Conn) Publish(ctx context.Context, destination string, payload []byte) error {
	if err := c.rdb.Publish(ctx, destination, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", destination, err)
	}
	return nil
}

// Done is closed when the link fails or is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports the fault that closed Done, nil after Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends every feed and the Redis client. Implements io.Closer.
func (c *Conn) Close() error {
	return c.fail(nil)
}

// monitor pings Redis until the link is closed; the first failed ping faults
// the link.
func (c *Conn) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := c.rdb.Ping(ctx).Err()
			cancel()
			if err != nil {
				glog.V(1).Infof("[redisbroker] health ping failed: %v", err)
				c.fail(fmt.Errorf("redis health check failed: %w", err))
				return
			}
		}
	}
}

func (c *Conn) fail(err error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.err = err
	feeds := c.feeds
	c.feeds = nil
	c.mu.Unlock()

	for f := range feeds {
		f.Close()
	}
	close(c.done)

	if cerr := c.rdb.Close(); cerr != nil && !errors.Is(cerr, redis.ErrClosed) {
		return fmt.Errorf("failed to close Redis client: %w", cerr)
	}
	return nil
}

func (c *Conn) forget(f *Feed) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.feeds, f)
}

// Feed is an active Redis subscription.
// Caller must call Close() when done to clean up resources.
type Feed struct {
	conn     *Conn
	topic    string
	pubsub   *redis.PubSub
	messages chan []byte
	stop     chan struct{}
	once     sync.Once
}

// Messages returns the channel of raw payloads. It is closed when the feed
// is closed or the link fails.
func (f *Feed) Messages() <-chan []byte {
	return f.messages
}

// Close unsubscribes. Safe to call multiple times - subsequent calls are
// no-ops.
func (f *Feed) Close() error {
	f.once.Do(func() {
		close(f.stop)
		f.conn.forget(f)
	})
	return nil
}

func (f *Feed) pump() {
	defer close(f.messages)
	defer f.pubsub.Close()

	ch := f.pubsub.Channel()
	for {
		select {
		case <-f.stop:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case f.messages <- []byte(msg.Payload):
			case <-f.stop:
				return
			}
		}
	}
}
