package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrHandshakeFailed is returned to Connect callers when the dialer fails.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrTransportFault marks an established link that failed. It is logged
	// and recovered by reconnecting, never returned from Connect.
	ErrTransportFault = errors.New("transport fault")

	// ErrNotConnected is returned when an operation needs a live link and the
	// manager was disconnected while waiting.
	ErrNotConnected = errors.New("not connected")
)

// ConnectionError wraps a handshake failure or transport fault.
type ConnectionError struct {
	Kind error // ErrHandshakeFailed or ErrTransportFault
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *ConnectionError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
