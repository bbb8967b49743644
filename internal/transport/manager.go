package transport

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultReconnectDelay is the fixed pause between a fault and the next
// handshake attempt.
const DefaultReconnectDelay = 5 * time.Second

// State is the logical state of the process-wide link.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// attempt is one in-flight handshake shared by every Connect caller that
// arrives while it runs.
type attempt struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Manager owns the single pub/sub link of the process.
//
// The active flag records whether the process wants to stay connected; it is
// set by Connect and cleared by Disconnect. While active, handshake failures
// and transport faults are retried after a fixed delay without caller
// involvement. The Manager is safe for concurrent use.
type Manager struct {
	dialer Dialer
	delay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	active  bool
	conn    Conn
	attempt *attempt
	retry   *time.Timer
	changed chan struct{} // closed and replaced on every state change
}

// NewManager creates a disconnected manager. A delay <= 0 selects
// DefaultReconnectDelay.
func NewManager(dialer Dialer, delay time.Duration) *Manager {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		dialer:  dialer,
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
		changed: make(chan struct{}),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether the manager is trying to stay connected.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Connect establishes the link if needed and returns once the handshake has
// completed. Concurrent callers share one handshake. ctx bounds only this
// caller's wait, not the handshake itself.
func (m *Manager) Connect(ctx context.Context) error {
	_, err := m.Acquire(ctx)
	return err
}

// Acquire is Connect returning the live link.
func (m *Manager) Acquire(ctx context.Context) (Conn, error) {
	for {
		m.mu.Lock()
		if m.state == Connected {
			conn := m.conn
			m.mu.Unlock()
			return conn, nil
		}
		m.active = true
		a := m.attempt
		if a == nil {
			a = m.startLocked()
		}
		m.mu.Unlock()

		select {
		case <-a.done:
			if a.err != nil {
				return nil, a.err
			}
			// the link may already have faulted again; loop re-checks
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Await waits for the link to be connected without starting a handshake.
// It returns ErrNotConnected once the manager is no longer active.
func (m *Manager) Await(ctx context.Context) (Conn, error) {
	for {
		m.mu.Lock()
		if m.state == Connected {
			conn := m.conn
			m.mu.Unlock()
			return conn, nil
		}
		if !m.active {
			m.mu.Unlock()
			return nil, ErrNotConnected
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Disconnect tears the link down and stops reconnecting. It is a no-op when
// already disconnected. Subscriptions must have been closed by their owners;
// feeds still open are ended by the link closing.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if !m.active && m.conn == nil && m.attempt == nil {
		m.mu.Unlock()
		return nil
	}
	m.active = false
	m.stopRetryLocked()
	if m.attempt != nil {
		m.attempt.cancel()
	}
	conn := m.conn
	m.conn = nil
	if m.state == Connected {
		m.setStateLocked(Disconnected)
	} else {
		m.signalLocked()
	}
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	glog.Infof("[transport] disconnecting")
	return conn.Close()
}

// Close disconnects and releases the manager. Used at process shutdown.
func (m *Manager) Close() error {
	err := m.Disconnect()
	m.cancel()
	return err
}

func (m *Manager) startLocked() *attempt {
	m.stopRetryLocked()
	ctx, cancel := context.WithCancel(m.ctx)
	a := &attempt{done: make(chan struct{}), cancel: cancel}
	m.attempt = a
	m.setStateLocked(Connecting)
	go m.dial(ctx, a)
	return a
}

func (m *Manager) dial(ctx context.Context, a *attempt) {
	defer a.cancel()
	glog.V(1).Infof("[transport] handshake starting")
	conn, err := m.dialer.Dial(ctx)

	m.mu.Lock()
	m.attempt = nil
	switch {
	case err != nil:
		a.err = &ConnectionError{Kind: ErrHandshakeFailed, Err: err}
		m.setStateLocked(Disconnected)
		if m.active {
			glog.Warningf("[transport] %v; retrying in %s", a.err, m.delay)
			m.scheduleRetryLocked()
		}
	case !m.active:
		// Disconnect won the race against the handshake.
		a.err = &ConnectionError{Kind: ErrHandshakeFailed, Err: ErrNotConnected}
		m.setStateLocked(Disconnected)
	default:
		m.conn = conn
		m.setStateLocked(Connected)
		go m.watch(conn)
		glog.Infof("[transport] connected")
	}
	m.mu.Unlock()

	if err == nil && a.err != nil {
		conn.Close()
	}
	close(a.done)
}

// watch waits for an established link to fail and schedules the reconnect.
func (m *Manager) watch(conn Conn) {
	select {
	case <-conn.Done():
	case <-m.ctx.Done():
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != conn {
		// closed deliberately or already replaced
		return
	}
	m.conn = nil
	m.setStateLocked(Disconnected)
	fault := &ConnectionError{Kind: ErrTransportFault, Err: conn.Err()}
	if m.active {
		glog.Warningf("[transport] %v; reconnecting in %s", fault, m.delay)
		m.scheduleRetryLocked()
	}
}

func (m *Manager) scheduleRetryLocked() {
	m.stopRetryLocked()
	m.retry = time.AfterFunc(m.delay, m.retryNow)
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) retryNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retry = nil
	if m.active && m.state == Disconnected && m.attempt == nil && m.ctx.Err() == nil {
		m.startLocked()
	}
}

func (m *Manager) setStateLocked(s State) {
	m.state = s
	m.signalLocked()
}

func (m *Manager) signalLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}
