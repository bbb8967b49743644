package transport_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dyluth/blueprints/internal/transport"
	"github.com/dyluth/blueprints/internal/transport/membroker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDelay = 20 * time.Millisecond

func setupManager(t *testing.T) (*transport.Manager, *membroker.Broker) {
	broker := membroker.New()
	m := transport.NewManager(broker, testDelay)
	t.Cleanup(func() { m.Close() })
	return m, broker
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("connects and is idempotent", func(t *testing.T) {
		m, broker := setupManager(t)
		assert.Equal(t, transport.Disconnected, m.State())

		require.NoError(t, m.Connect(ctx))
		require.NoError(t, m.Connect(ctx))

		assert.Equal(t, transport.Connected, m.State())
		assert.True(t, m.Active())
		assert.Equal(t, 1, broker.Dials())
	})

	t.Run("concurrent callers share one handshake", func(t *testing.T) {
		gate := make(chan struct{})
		var dials atomic.Int32
		broker := membroker.New()
		dialer := transport.DialerFunc(func(ctx context.Context) (transport.Conn, error) {
			dials.Add(1)
			<-gate
			return broker.Dial(ctx)
		})
		m := transport.NewManager(dialer, testDelay)
		defer m.Close()

		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = m.Connect(ctx)
			}(i)
		}

		require.Eventually(t, func() bool { return m.State() == transport.Connecting }, time.Second, time.Millisecond)
		close(gate)
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
		assert.Equal(t, int32(1), dials.Load())
	})

	t.Run("resolves only after handshake completes", func(t *testing.T) {
		gate := make(chan struct{})
		broker := membroker.New()
		dialer := transport.DialerFunc(func(ctx context.Context) (transport.Conn, error) {
			<-gate
			return broker.Dial(ctx)
		})
		m := transport.NewManager(dialer, testDelay)
		defer m.Close()

		result := make(chan error, 1)
		go func() { result <- m.Connect(ctx) }()

		select {
		case <-result:
			t.Fatal("Connect returned before the handshake completed")
		case <-time.After(50 * time.Millisecond):
		}

		close(gate)
		select {
		case err := <-result:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for Connect")
		}
	})

	t.Run("surfaces handshake failure", func(t *testing.T) {
		m, broker := setupManager(t)
		broker.FailDials(errors.New("connection refused"))

		err := m.Connect(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, transport.ErrHandshakeFailed)
		assert.Contains(t, err.Error(), "connection refused")

		var connErr *transport.ConnectionError
		assert.True(t, errors.As(err, &connErr))
		assert.Equal(t, transport.Disconnected, m.State())
	})

	t.Run("caller context bounds only the wait", func(t *testing.T) {
		gate := make(chan struct{})
		broker := membroker.New()
		dialer := transport.DialerFunc(func(ctx context.Context) (transport.Conn, error) {
			<-gate
			return broker.Dial(ctx)
		})
		m := transport.NewManager(dialer, testDelay)
		defer m.Close()

		short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		err := m.Connect(short)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(gate)
		require.Eventually(t, func() bool { return m.State() == transport.Connected }, time.Second, time.Millisecond)
	})
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("is a no-op when never connected", func(t *testing.T) {
		m, _ := setupManager(t)
		assert.NoError(t, m.Disconnect())
		assert.NoError(t, m.Disconnect())
		assert.Equal(t, transport.Disconnected, m.State())
	})

	t.Run("tears down an active link", func(t *testing.T) {
		m, broker := setupManager(t)
		require.NoError(t, m.Connect(ctx))

		conn, err := m.Acquire(ctx)
		require.NoError(t, err)

		require.NoError(t, m.Disconnect())
		assert.Equal(t, transport.Disconnected, m.State())
		assert.False(t, m.Active())

		select {
		case <-conn.Done():
		case <-time.After(time.Second):
			t.Fatal("link was not closed")
		}
		assert.NoError(t, conn.Err())

		// no reconnect after a deliberate disconnect
		time.Sleep(3 * testDelay)
		assert.Equal(t, 1, broker.Dials())
	})

	t.Run("stops retrying failed handshakes", func(t *testing.T) {
		m, broker := setupManager(t)
		broker.FailDials(errors.New("refused"))

		require.Error(t, m.Connect(ctx))
		require.NoError(t, m.Disconnect())

		time.Sleep(4 * testDelay)
		assert.Equal(t, 1, broker.Dials())
	})
}

func TestAutomaticReconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("reconnects after a transport fault", func(t *testing.T) {
		m, broker := setupManager(t)
		require.NoError(t, m.Connect(ctx))

		broker.Sever()

		require.Eventually(t, func() bool {
			return broker.Dials() == 2 && m.State() == transport.Connected
		}, time.Second, 5*time.Millisecond)
		assert.True(t, m.Active())
	})

	t.Run("keeps retrying while the broker is down", func(t *testing.T) {
		m, broker := setupManager(t)
		require.NoError(t, m.Connect(ctx))

		broker.FailDials(errors.New("broker down"))
		broker.Sever()

		require.Eventually(t, func() bool { return broker.Dials() >= 3 }, time.Second, 5*time.Millisecond)
		assert.NotEqual(t, transport.Connected, m.State())

		broker.FailDials(nil)
		require.Eventually(t, func() bool { return m.State() == transport.Connected }, time.Second, 5*time.Millisecond)
	})

	t.Run("await unblocks after reconnect", func(t *testing.T) {
		m, broker := setupManager(t)
		require.NoError(t, m.Connect(ctx))
		broker.Sever()

		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		conn, err := m.Await(waitCtx)
		require.NoError(t, err)
		assert.NotNil(t, conn)
		assert.Equal(t, transport.Connected, m.State())
	})

	t.Run("await fails once disconnected", func(t *testing.T) {
		m, _ := setupManager(t)
		_, err := m.Await(ctx)
		assert.ErrorIs(t, err, transport.ErrNotConnected)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", transport.Disconnected.String())
	assert.Equal(t, "connecting", transport.Connecting.String())
	assert.Equal(t, "connected", transport.Connected.String())
}
