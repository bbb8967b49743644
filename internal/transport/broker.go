// Package transport owns the process-wide pub/sub link used for
// collaborative editing. The Manager tracks the connection state and
// reconnects after faults; the wire itself is provided by a Dialer so that
// Redis, the web-socket relay, or a test fake can sit underneath.
package transport

import "context"

// Dialer performs the transport handshake. Dial must return only once the
// link is usable (or has definitively failed).
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// Conn is one established transport link.
type Conn interface {
	// Subscribe starts delivery of messages published to topic. It returns
	// only after the broker acknowledged the subscription.
	Subscribe(ctx context.Context, topic string) (Feed, error)

	// Publish sends payload to destination. There is no delivery ack.
	Publish(ctx context.Context, destination string, payload []byte) error

	// Done is closed when the link fails or is closed.
	Done() <-chan struct{}

	// Err reports why Done was closed; nil after a clean Close.
	Err() error

	// Close tears the link down. Safe to call more than once.
	Close() error
}

// Feed delivers the raw payloads of one subscription in broker order.
// Messages is closed when the feed is closed or its link fails.
type Feed interface {
	Messages() <-chan []byte
	Close() error
}
