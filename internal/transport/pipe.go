package transport

import "sync"

// Pipe is an unbounded FIFO that feeds a Messages channel from its own pump
// goroutine, so producers (a socket read loop, an in-memory broker) never
// block on a slow subscriber. It implements Feed.
type Pipe struct {
	mu      sync.Mutex
	queue   [][]byte
	closed  bool
	wake    chan struct{}
	out     chan []byte
	stop    chan struct{}
	once    sync.Once
	onClose func()
}

// NewPipe starts a pipe. onClose, if not nil, runs once when the pipe is
// closed by its consumer.
func NewPipe(onClose func()) *Pipe {
	p := &Pipe{
		wake:    make(chan struct{}, 1),
		out:     make(chan []byte),
		stop:    make(chan struct{}),
		onClose: onClose,
	}
	go p.pump()
	return p
}

// Push enqueues one payload. It returns false once the pipe is closed.
func (p *Pipe) Push(payload []byte) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, payload)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// Messages returns the delivery channel; it is closed after Close.
func (p *Pipe) Messages() <-chan []byte {
	return p.out
}

// Close stops delivery and runs onClose. Safe to call multiple times.
func (p *Pipe) Close() error {
	p.shutdown(true)
	return nil
}

// Terminate stops delivery without running onClose. Used by the owning link
// when it fails.
func (p *Pipe) Terminate() {
	p.shutdown(false)
}

func (p *Pipe) shutdown(notify bool) {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.queue = nil
		p.mu.Unlock()
		close(p.stop)
		if notify && p.onClose != nil {
			p.onClose()
		}
	})
}

func (p *Pipe) pump() {
	defer close(p.out)
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			select {
			case <-p.wake:
				continue
			case <-p.stop:
				return
			}
		}
		next := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case p.out <- next:
		case <-p.stop:
			return
		}
	}
}
