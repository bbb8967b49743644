// Package wsbroker carries blueprint topics over a web-socket connection to
// the relay server. Each text message is one JSON Frame.
package wsbroker

import "time"

// FrameType names a frame in the relay protocol.
type FrameType string

const (
	// client -> server
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FrameSend        FrameType = "send"

	// server -> client
	FrameConnected FrameType = "connected"
	FrameReceipt   FrameType = "receipt"
	FrameMessage   FrameType = "message"
	FrameError     FrameType = "error"
)

// Frame is the single envelope exchanged over the socket. Body carries the
// payload text verbatim, so a malformed payload still reaches the subscriber
// that has to drop it.
//
//	subscribe   {id, destination}      server answers receipt{id} once live
//	unsubscribe {id}
//	send        {destination, body}
//	connected   {}                     first server frame, ends the handshake
//	message     {id, destination, body}
//	error       {id?, body}
type Frame struct {
	Type        FrameType `json:"type"`
	ID          string    `json:"id,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Body        string    `json:"body,omitempty"`
}

// ErrorFrame builds an error frame for subscription id (may be empty).
func ErrorFrame(id, message string) Frame {
	return Frame{Type: FrameError, ID: id, Body: message}
}

// Socket timing shared by client and relay.
const (
	WriteTimeout     = 10 * time.Second
	PingInterval     = 30 * time.Second
	ReadTimeout      = 2 * PingInterval
	HandshakeTimeout = 10 * time.Second
	MaxMessageSize   = 1 << 20
)
