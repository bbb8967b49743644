package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dyluth/blueprints/internal/transport/wsbroker"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// outboundBuffer is the number of frames queued per client before the
// client is considered too slow and dropped.
const outboundBuffer = 256

// bridge is one web-socket client. Each client subscription maps to its own
// Redis subscription; sends are published to Redis unchanged.
type bridge struct {
	id   string
	ws   *websocket.Conn
	rdb  *redis.Client
	out  chan wsbroker.Frame
	ctx  context.Context
	stop context.CancelFunc

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("[relay] web-socket upgrade failed: %v", err)
		return
	}

	ctx, stop := context.WithCancel(r.Context())
	b := &bridge{
		id:   uuid.NewString(),
		ws:   ws,
		rdb:  s.rdb,
		out:  make(chan wsbroker.Frame, outboundBuffer),
		ctx:  ctx,
		stop: stop,
		subs: make(map[string]*redis.PubSub),
	}
	glog.Infof("[relay] client %s connected from %s", b.id, r.RemoteAddr)

	b.emit(wsbroker.Frame{Type: wsbroker.FrameConnected})
	go b.writePump()
	b.readPump()
	b.close()
	glog.Infof("[relay] client %s disconnected", b.id)
}

func (b *bridge) readPump() {
	b.ws.SetReadLimit(wsbroker.MaxMessageSize)
	b.ws.SetReadDeadline(time.Now().Add(wsbroker.ReadTimeout))
	b.ws.SetPongHandler(func(string) error {
		b.ws.SetReadDeadline(time.Now().Add(wsbroker.ReadTimeout))
		return nil
	})

	for {
		var f wsbroker.Frame
		if err := b.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.V(1).Infof("[relay] client %s read failed: %v", b.id, err)
			}
			return
		}
		b.ws.SetReadDeadline(time.Now().Add(wsbroker.ReadTimeout))

		switch f.Type {
		case wsbroker.FrameSubscribe:
			b.subscribe(f.ID, f.Destination)
		case wsbroker.FrameUnsubscribe:
			b.unsubscribe(f.ID)
		case wsbroker.FrameSend:
			b.send(f.Destination, f.Body)
		default:
			b.emit(wsbroker.ErrorFrame(f.ID, fmt.Sprintf("unknown frame type %q", f.Type)))
		}

		if b.ctx.Err() != nil {
			return
		}
	}
}

func (b *bridge) writePump() {
	ticker := time.NewTicker(wsbroker.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-b.out:
			b.ws.SetWriteDeadline(time.Now().Add(wsbroker.WriteTimeout))
			if err := b.ws.WriteJSON(f); err != nil {
				glog.V(1).Infof("[relay] client %s write failed: %v", b.id, err)
				b.stop()
				b.ws.Close()
				return
			}
		case <-ticker.C:
			if err := b.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsbroker.WriteTimeout)); err != nil {
				b.stop()
				b.ws.Close()
				return
			}
		case <-b.ctx.Done():
			b.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsbroker.WriteTimeout))
			b.ws.Close()
			return
		}
	}
}

// emit queues a frame; a client whose queue is full is dropped.
func (b *bridge) emit(f wsbroker.Frame) {
	select {
	case b.out <- f:
	case <-b.ctx.Done():
	default:
		glog.Warningf("[relay] client %s is not keeping up; dropping it", b.id)
		b.stop()
	}
}

func (b *bridge) subscribe(id, destination string) {
	if id == "" {
		b.emit(wsbroker.ErrorFrame("", "subscribe requires an id"))
		return
	}
	d, err := blueprint.ParseDestination(destination)
	if err != nil || d.Namespace != blueprint.TopicNamespace {
		b.emit(wsbroker.ErrorFrame(id, fmt.Sprintf("cannot subscribe to %q", destination)))
		return
	}

	b.mu.Lock()
	_, taken := b.subs[id]
	b.mu.Unlock()
	if taken {
		b.emit(wsbroker.ErrorFrame(id, "subscription id already in use"))
		return
	}

	pubsub := b.rdb.Subscribe(b.ctx, destination)
	if _, err := pubsub.Receive(b.ctx); err != nil {
		pubsub.Close()
		b.emit(wsbroker.ErrorFrame(id, fmt.Sprintf("failed to subscribe to %s: %v", destination, err)))
		return
	}

	b.mu.Lock()
	b.subs[id] = pubsub
	b.mu.Unlock()

	b.emit(wsbroker.Frame{Type: wsbroker.FrameReceipt, ID: id})
	glog.V(1).Infof("[relay] client %s subscribed %s to %s", b.id, id, destination)

	go func() {
		for msg := range pubsub.Channel() {
			b.emit(wsbroker.Frame{Type: wsbroker.FrameMessage, ID: id, Destination: msg.Channel, Body: msg.Payload})
		}
	}()
}

func (b *bridge) unsubscribe(id string) {
	b.mu.Lock()
	pubsub := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if pubsub != nil {
		pubsub.Close()
		glog.V(1).Infof("[relay] client %s unsubscribed %s", b.id, id)
	}
}

func (b *bridge) send(destination, body string) {
	d, err := blueprint.ParseDestination(destination)
	if err != nil || d.Namespace != blueprint.AppNamespace || d.Kind != blueprint.ChannelNewPoint {
		b.emit(wsbroker.ErrorFrame("", fmt.Sprintf("cannot send to %q", destination)))
		return
	}
	if err := b.rdb.Publish(b.ctx, destination, body).Err(); err != nil {
		glog.Warningf("[relay] client %s failed to publish to %s: %v", b.id, destination, err)
		b.emit(wsbroker.ErrorFrame("", fmt.Sprintf("failed to send to %s", destination)))
	}
}

func (b *bridge) close() {
	b.stop()

	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*redis.PubSub)
	b.mu.Unlock()

	for _, pubsub := range subs {
		pubsub.Close()
	}
}
