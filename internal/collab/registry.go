// Package collab implements the collaborative channels of an editing
// session: topic subscriptions with typed callbacks, the point publisher and
// the echo suppressor.
package collab

import (
	"context"
	"sync"

	"github.com/dyluth/blueprints/internal/transport"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
)

// Registry hands out topic subscriptions on the shared link. It keeps at most
// one live subscription per topic: subscribing again supersedes the previous
// handle.
type Registry struct {
	mgr *transport.Manager

	mu   sync.Mutex
	live map[string]*Subscription
}

// NewRegistry creates a registry on top of mgr.
func NewRegistry(mgr *transport.Manager) *Registry {
	return &Registry{
		mgr:  mgr,
		live: make(map[string]*Subscription),
	}
}

// SubscribePoints delivers every well-formed point published on the
// blueprint's point topic to onPoint.
func (r *Registry) SubscribePoints(ctx context.Context, key blueprint.Key, onPoint func(blueprint.Point)) (*Subscription, error) {
	topic := blueprint.PointTopic(key)
	return r.subscribe(ctx, topic, func(payload []byte) {
		p, err := blueprint.DecodePoint(payload)
		if err != nil {
			glog.V(2).Infof("[collab] dropping payload on %s: %v", topic, err)
			return
		}
		onPoint(p)
	})
}

// SubscribePolygons delivers every well-formed polygon published on the
// blueprint's polygon topic to onPolygon. An empty polygon is delivered as an
// empty slice.
func (r *Registry) SubscribePolygons(ctx context.Context, key blueprint.Key, onPolygon func([]blueprint.Point)) (*Subscription, error) {
	topic := blueprint.PolygonTopic(key)
	return r.subscribe(ctx, topic, func(payload []byte) {
		points, err := blueprint.DecodePolygon(payload)
		if err != nil {
			glog.V(2).Infof("[collab] dropping payload on %s: %v", topic, err)
			return
		}
		onPolygon(points)
	})
}

// Live returns the number of open subscriptions.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func (r *Registry) subscribe(ctx context.Context, topic string, dispatch func([]byte)) (*Subscription, error) {
	conn, err := r.mgr.Acquire(ctx)
	if err != nil {
		return nil, &SubscriptionError{Topic: topic, Err: err}
	}
	feed, err := conn.Subscribe(ctx, topic)
	if err != nil {
		return nil, &SubscriptionError{Topic: topic, Err: err}
	}

	lifetime, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		topic:    topic,
		registry: r,
		ctx:      lifetime,
		cancel:   cancel,
		feed:     feed,
		stopped:  make(chan struct{}),
	}

	r.mu.Lock()
	previous := r.live[topic]
	r.live[topic] = sub
	r.mu.Unlock()

	if previous != nil {
		glog.Warningf("[collab] superseding live subscription on %s", topic)
		previous.Close()
	}

	glog.V(1).Infof("[collab] subscribed to %s", topic)
	go sub.run(feed, dispatch)
	return sub, nil
}

func (r *Registry) release(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live[sub.topic] == sub {
		delete(r.live, sub.topic)
	}
}

// Subscription is a live topic subscription. Callbacks run on a single
// dispatch goroutine in transport order.
type Subscription struct {
	topic    string
	registry *Registry
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	once     sync.Once

	mu   sync.Mutex
	feed transport.Feed

	// held across the closed check and the callback
	dispatching sync.Mutex
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Close ends the subscription. A callback already running is waited for,
// and no callback is started after Close returns. Close must not be called
// from the subscription's own callback. Safe to call repeatedly.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.cancel()
		feed := s.feed
		s.feed = nil
		s.mu.Unlock()

		if feed != nil {
			feed.Close()
		}
		s.dispatching.Lock()
		s.dispatching.Unlock()

		s.registry.release(s)
		glog.V(1).Infof("[collab] unsubscribed from %s", s.topic)
	})
	return nil
}

// Stopped is closed once the dispatch goroutine has exited.
func (s *Subscription) Stopped() <-chan struct{} { return s.stopped }

func (s *Subscription) closed() bool {
	return s.ctx.Err() != nil
}

func (s *Subscription) run(feed transport.Feed, dispatch func([]byte)) {
	defer close(s.stopped)
	for {
		for payload := range feed.Messages() {
			if !s.deliver(dispatch, payload) {
				return
			}
		}
		if s.closed() {
			return
		}

		next, ok := s.resubscribe()
		if !ok {
			return
		}
		feed = next
	}
}

// deliver runs one callback unless the subscription was closed. It reports
// whether delivery should continue.
func (s *Subscription) deliver(dispatch func([]byte), payload []byte) bool {
	s.dispatching.Lock()
	defer s.dispatching.Unlock()
	if s.closed() {
		return false
	}
	dispatch(payload)
	return true
}

// resubscribe waits for the link to come back after a fault and subscribes
// to the same topic again. It gives up when the subscription is closed or
// the manager stops reconnecting.
func (s *Subscription) resubscribe() (transport.Feed, bool) {
	for {
		conn, err := s.registry.mgr.Await(s.ctx)
		if err != nil {
			if !s.closed() {
				glog.Warningf("[collab] giving up on %s: %v", s.topic, err)
				s.Close()
			}
			return nil, false
		}

		feed, err := conn.Subscribe(s.ctx, s.topic)
		if err != nil {
			if s.closed() {
				return nil, false
			}
			glog.Warningf("[collab] failed to resubscribe to %s: %v", s.topic, err)
			select {
			case <-conn.Done():
				continue
			case <-s.ctx.Done():
				return nil, false
			}
		}

		s.mu.Lock()
		if s.closed() {
			s.mu.Unlock()
			feed.Close()
			return nil, false
		}
		s.feed = feed
		s.mu.Unlock()

		glog.Infof("[collab] resubscribed to %s", s.topic)
		return feed, true
	}
}
