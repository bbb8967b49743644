package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe(t *testing.T) {
	t.Run("delivers in order without blocking the producer", func(t *testing.T) {
		p := NewPipe(nil)
		defer p.Close()

		for i := 0; i < 100; i++ {
			require.True(t, p.Push([]byte{byte(i)}))
		}
		for i := 0; i < 100; i++ {
			select {
			case msg := <-p.Messages():
				assert.Equal(t, []byte{byte(i)}, msg)
			case <-time.After(time.Second):
				t.Fatalf("timeout waiting for message %d", i)
			}
		}
	})

	t.Run("close is idempotent and runs the hook once", func(t *testing.T) {
		calls := 0
		p := NewPipe(func() { calls++ })

		assert.NoError(t, p.Close())
		assert.NoError(t, p.Close())
		assert.Equal(t, 1, calls)
		assert.False(t, p.Push([]byte("late")))

		_, ok := <-p.Messages()
		assert.False(t, ok)
	})

	t.Run("terminate skips the hook", func(t *testing.T) {
		calls := 0
		p := NewPipe(func() { calls++ })
		p.Terminate()
		p.Close()
		assert.Equal(t, 0, calls)
	})
}
