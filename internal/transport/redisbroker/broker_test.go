package redisbroker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDialer creates a dialer pointed at a fresh miniredis instance
func setupTestDialer(t *testing.T) (*Dialer, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	return NewDialer(&redis.Options{Addr: mr.Addr()}, 20*time.Millisecond), mr
}

func TestDial(t *testing.T) {
	ctx := context.Background()

	t.Run("completes handshake", func(t *testing.T) {
		d, _ := setupTestDialer(t)
		conn, err := d.Dial(ctx)
		require.NoError(t, err)
		defer conn.Close()

		select {
		case <-conn.Done():
			t.Fatal("link closed unexpectedly")
		default:
		}
	})

	t.Run("fails when Redis is unreachable", func(t *testing.T) {
		d := NewDialer(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}, 0)
		_, err := d.Dial(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping Redis")
	})

	t.Run("parses URLs", func(t *testing.T) {
		_, err := NewDialerFromURL("redis://localhost:6379/0", 0)
		assert.NoError(t, err)

		_, err = NewDialerFromURL("http://nope", 0)
		assert.Error(t, err)
	})
}

func TestSubscribePublish(t *testing.T) {
	ctx := context.Background()
	d, _ := setupTestDialer(t)

	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	feed, err := conn.Subscribe(ctx, "/topic/newpoint/ana/house")
	require.NoError(t, err)
	defer feed.Close()

	require.NoError(t, conn.Publish(ctx, "/topic/newpoint/ana/house", []byte(`{"x":1,"y":2}`)))
	require.NoError(t, conn.Publish(ctx, "/topic/newpoint/ana/other", []byte(`{"x":9,"y":9}`)))
	require.NoError(t, conn.Publish(ctx, "/topic/newpoint/ana/house", []byte(`{"x":3,"y":4}`)))

	for _, want := range []string{`{"x":1,"y":2}`, `{"x":3,"y":4}`} {
		select {
		case msg := <-feed.Messages():
			assert.Equal(t, want, string(msg))
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestFeedClose(t *testing.T) {
	ctx := context.Background()
	d, _ := setupTestDialer(t)

	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	feed, err := conn.Subscribe(ctx, "/topic/newpolygon/ana/house")
	require.NoError(t, err)

	assert.NoError(t, feed.Close())
	assert.NoError(t, feed.Close())

	select {
	case _, ok := <-feed.Messages():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("feed channel not closed")
	}
}

func TestFaultDetection(t *testing.T) {
	ctx := context.Background()
	d, mr := setupTestDialer(t)

	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	feed, err := conn.Subscribe(ctx, "/topic/newpoint/ana/house")
	require.NoError(t, err)

	mr.Close()

	select {
	case <-conn.Done():
		assert.Error(t, conn.Err())
	case <-time.After(2 * time.Second):
		t.Fatal("fault not detected")
	}

	select {
	case _, ok := <-feed.Messages():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("feed not ended by fault")
	}
}

func TestCloseIsClean(t *testing.T) {
	ctx := context.Background()
	d, _ := setupTestDialer(t)

	conn, err := d.Dial(ctx)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Err())

	_, err = conn.Subscribe(ctx, "/topic/newpoint/ana/house")
	assert.Error(t, err)
}
