package collab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/blueprints/internal/transport"
	"github.com/dyluth/blueprints/internal/transport/membroker"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDelay = 20 * time.Millisecond

var house = blueprint.Key{Author: "ana", Name: "house"}

func setupRegistry(t *testing.T, opts ...membroker.Option) (*Registry, *transport.Manager, *membroker.Broker) {
	broker := membroker.New(opts...)
	mgr := transport.NewManager(broker, testDelay)
	t.Cleanup(func() { mgr.Close() })
	return NewRegistry(mgr), mgr, broker
}

// collector records callback arguments for assertions from the test
// goroutine.
type collector[T any] struct {
	mu    sync.Mutex
	items []T
}

func (c *collector[T]) add(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, v)
}

func (c *collector[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

func (c *collector[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func TestSubscribePoints(t *testing.T) {
	ctx := context.Background()

	t.Run("connects transparently and delivers in order", func(t *testing.T) {
		reg, mgr, broker := setupRegistry(t)
		var got collector[blueprint.Point]

		sub, err := reg.SubscribePoints(ctx, house, got.add)
		require.NoError(t, err)
		defer sub.Close()

		assert.Equal(t, transport.Connected, mgr.State())
		assert.Equal(t, "/topic/newpoint/ana/house", sub.Topic())
		assert.Equal(t, 1, broker.Subscribers(sub.Topic()))

		broker.Inject(sub.Topic(), []byte(`{"x":1,"y":2}`))
		broker.Inject(sub.Topic(), []byte(`{"x":3,"y":4}`))

		require.Eventually(t, func() bool { return got.len() == 2 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []blueprint.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, got.snapshot())
	})

	t.Run("drops malformed payloads and keeps going", func(t *testing.T) {
		reg, _, broker := setupRegistry(t)
		var got collector[blueprint.Point]

		sub, err := reg.SubscribePoints(ctx, house, got.add)
		require.NoError(t, err)
		defer sub.Close()

		broker.Inject(sub.Topic(), []byte(`not json`))
		broker.Inject(sub.Topic(), []byte(`{"x":1}`))
		broker.Inject(sub.Topic(), []byte(`{"x":5,"y":6}`))

		require.Eventually(t, func() bool { return got.len() == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, blueprint.Point{X: 5, Y: 6}, got.snapshot()[0])
	})

	t.Run("returns SubscriptionError when connect fails", func(t *testing.T) {
		reg, _, broker := setupRegistry(t)
		broker.FailDials(errors.New("connection refused"))

		sub, err := reg.SubscribePoints(ctx, house, func(blueprint.Point) {})
		require.Error(t, err)
		assert.Nil(t, sub)

		var subErr *SubscriptionError
		require.ErrorAs(t, err, &subErr)
		assert.Equal(t, "/topic/newpoint/ana/house", subErr.Topic)
		assert.ErrorIs(t, err, transport.ErrHandshakeFailed)
		assert.Equal(t, 0, reg.Live())
	})
}

func TestSubscribePolygons(t *testing.T) {
	ctx := context.Background()
	reg, _, broker := setupRegistry(t)
	var got collector[[]blueprint.Point]

	sub, err := reg.SubscribePolygons(ctx, house, got.add)
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, "/topic/newpolygon/ana/house", sub.Topic())

	broker.Inject(sub.Topic(), []byte(`{"x":1,"y":1}`))
	broker.Inject(sub.Topic(), []byte(`[{"x":0,"y":0},{"x":10,"y":0},{"x":10,"y":10}]`))
	broker.Inject(sub.Topic(), []byte(`[]`))

	require.Eventually(t, func() bool { return got.len() == 2 }, time.Second, 5*time.Millisecond)
	polygons := got.snapshot()
	assert.Len(t, polygons[0], 3)
	assert.Empty(t, polygons[1])
}

func TestSubscriptionClose(t *testing.T) {
	ctx := context.Background()
	reg, _, broker := setupRegistry(t)
	var got collector[blueprint.Point]

	sub, err := reg.SubscribePoints(ctx, house, got.add)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case <-sub.Stopped():
	case <-time.After(time.Second):
		t.Fatal("dispatch goroutine did not stop")
	}

	assert.Equal(t, 0, broker.Subscribers(sub.Topic()))
	assert.Equal(t, 0, reg.Live())

	broker.Inject(sub.Topic(), []byte(`{"x":1,"y":2}`))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, got.len())
}

func TestSubscriptionCloseWaitsForCallback(t *testing.T) {
	ctx := context.Background()
	reg, _, broker := setupRegistry(t)
	var got collector[blueprint.Point]
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	sub, err := reg.SubscribePoints(ctx, house, func(p blueprint.Point) {
		started <- struct{}{}
		<-release
		got.add(p)
	})
	require.NoError(t, err)

	broker.Inject(sub.Topic(), []byte(`{"x":1,"y":2}`))
	broker.Inject(sub.Topic(), []byte(`{"x":3,"y":4}`))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("callback did not start")
	}

	closed := make(chan struct{})
	go func() {
		sub.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	// the running callback finished; the queued point is never delivered
	assert.Equal(t, []blueprint.Point{{X: 1, Y: 2}}, got.snapshot())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, got.len())
	assert.Len(t, started, 0)
}

func TestSubscribeSupersedes(t *testing.T) {
	ctx := context.Background()
	reg, _, broker := setupRegistry(t)
	var first, second collector[blueprint.Point]

	old, err := reg.SubscribePoints(ctx, house, first.add)
	require.NoError(t, err)
	current, err := reg.SubscribePoints(ctx, house, second.add)
	require.NoError(t, err)
	defer current.Close()

	select {
	case <-old.Stopped():
	case <-time.After(time.Second):
		t.Fatal("superseded subscription still running")
	}
	assert.Equal(t, 1, reg.Live())
	assert.Equal(t, 1, broker.Subscribers(current.Topic()))

	broker.Inject(current.Topic(), []byte(`{"x":7,"y":8}`))
	require.Eventually(t, func() bool { return second.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, first.len())

	// closing the stale handle must not drop the live one
	require.NoError(t, old.Close())
	assert.Equal(t, 1, reg.Live())
}

func TestSubscriptionSurvivesFault(t *testing.T) {
	ctx := context.Background()
	reg, mgr, broker := setupRegistry(t)
	var got collector[blueprint.Point]

	sub, err := reg.SubscribePoints(ctx, house, got.add)
	require.NoError(t, err)
	defer sub.Close()

	broker.Sever()
	require.Eventually(t, func() bool {
		return mgr.State() == transport.Connected && broker.Subscribers(sub.Topic()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, broker.Dials())

	broker.Inject(sub.Topic(), []byte(`{"x":9,"y":9}`))
	require.Eventually(t, func() bool { return got.len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSubscriptionEndsOnDisconnect(t *testing.T) {
	ctx := context.Background()
	reg, mgr, broker := setupRegistry(t)

	sub, err := reg.SubscribePoints(ctx, house, func(blueprint.Point) {})
	require.NoError(t, err)

	require.NoError(t, mgr.Disconnect())

	select {
	case <-sub.Stopped():
	case <-time.After(time.Second):
		t.Fatal("subscription kept waiting after disconnect")
	}
	assert.Equal(t, 0, reg.Live())
	assert.Equal(t, 1, broker.Dials())
}
