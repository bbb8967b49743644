package wsbroker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dyluth/blueprints/internal/transport"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Dialer opens links to a relay endpoint such as ws://localhost:8080/ws.
type Dialer struct {
	url    string
	header http.Header
	ws     *websocket.Dialer
}

// NewDialer creates a dialer for the relay at url.
func NewDialer(url string) *Dialer {
	return &Dialer{
		url: url,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: HandshakeTimeout,
		},
	}
}

// Dial opens the socket and waits for the relay's connected frame.
func (d *Dialer) Dial(ctx context.Context) (transport.Conn, error) {
	ws, _, err := d.ws.DialContext(ctx, d.url, d.header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", d.url, err)
	}

	ws.SetReadLimit(MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	var first Frame
	if err := ws.ReadJSON(&first); err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to read connected frame: %w", err)
	}
	if first.Type != FrameConnected {
		ws.Close()
		return nil, fmt.Errorf("unexpected first frame %q from %s", first.Type, d.url)
	}

	c := &Conn{
		ws:      ws,
		feeds:   make(map[string]*transport.Pipe),
		pending: make(map[string]chan error),
		done:    make(chan struct{}),
	}
	ws.SetReadDeadline(time.Now().Add(ReadTimeout))
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(ReadTimeout))
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	go c.readPump()
	return c, nil
}

// Conn is one relay link. Safe for concurrent use.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	feeds   map[string]*transport.Pipe
	pending map[string]chan error
	done    chan struct{}
	err     error
	closed  bool
}

// Subscribe registers a subscription and waits for the relay's receipt.
func (c *Conn) Subscribe(ctx context.Context, topic string) (transport.Feed, error) {
	id := uuid.NewString()
	ack := make(chan error, 1)
	pipe := transport.NewPipe(func() { c.unsubscribe(id) })

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		pipe.Terminate()
		return nil, transport.ErrNotConnected
	}
	c.feeds[id] = pipe
	c.pending[id] = ack
	c.mu.Unlock()

	if err := c.write(Frame{Type: FrameSubscribe, ID: id, Destination: topic}); err != nil {
		c.drop(id)
		return nil, fmt.Errorf("failed to send subscribe for %s: %w", topic, err)
	}

	select {
	case err := <-ack:
		if err != nil {
			c.drop(id)
			return nil, fmt.Errorf("subscription to %s rejected: %w", topic, err)
		}
		return pipe, nil
	case <-ctx.Done():
		pipe.Close()
		return nil, ctx.Err()
	case <-c.done:
		return nil, transport.ErrNotConnected
	}
}

// Publish sends payload to destination through the relay.
func (c *Conn) Publish(ctx context.Context, destination string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.write(Frame{Type: FrameSend, Destination: destination, Body: string(payload)}); err != nil {
		return fmt.Errorf("failed to send to %s: %w", destination, err)
	}
	return nil
}

// Done is closed when the socket fails or is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports the fault that closed Done, nil after Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and shuts the socket.
func (c *Conn) Close() error {
	c.shutdown(nil, true)
	return nil
}

func (c *Conn) write(f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transport.ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return c.ws.WriteJSON(f)
}

func (c *Conn) readPump() {
	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.shutdown(fmt.Errorf("relay read failed: %w", err), false)
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(ReadTimeout))

		switch f.Type {
		case FrameReceipt:
			c.resolve(f.ID, nil)
		case FrameMessage:
			c.mu.Lock()
			pipe := c.feeds[f.ID]
			c.mu.Unlock()
			if pipe != nil {
				pipe.Push([]byte(f.Body))
			}
		case FrameError:
			if !c.resolve(f.ID, errors.New(f.Body)) {
				glog.Warningf("[wsbroker] relay error: %s", f.Body)
			}
		default:
			glog.V(1).Infof("[wsbroker] ignoring frame type %q", f.Type)
		}
	}
}

// resolve completes a pending subscribe; false when none was waiting.
func (c *Conn) resolve(id string, err error) bool {
	c.mu.Lock()
	ack, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		ack <- err
	}
	return ok
}

// drop forgets a subscription that never went live.
func (c *Conn) drop(id string) {
	c.mu.Lock()
	pipe := c.feeds[id]
	delete(c.feeds, id)
	delete(c.pending, id)
	c.mu.Unlock()
	if pipe != nil {
		pipe.Terminate()
	}
}

func (c *Conn) unsubscribe(id string) {
	c.mu.Lock()
	delete(c.feeds, id)
	delete(c.pending, id)
	c.mu.Unlock()

	if err := c.write(Frame{Type: FrameUnsubscribe, ID: id}); err != nil && !errors.Is(err, transport.ErrNotConnected) {
		glog.V(1).Infof("[wsbroker] unsubscribe %s: %v", id, err)
	}
}

func (c *Conn) shutdown(err error, graceful bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = err
	feeds := c.feeds
	c.feeds = make(map[string]*transport.Pipe)
	c.pending = make(map[string]chan error)
	c.mu.Unlock()

	for _, pipe := range feeds {
		pipe.Terminate()
	}
	if graceful {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(WriteTimeout))
	}
	c.ws.Close()
	close(c.done)
}
