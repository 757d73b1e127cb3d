package mailbox

import (
	"sync"

	"github.com/bnema/opennow-cli/internal/domain"
)

const defaultForwarderBuffer = 64

// Forwarder carries input events from the foreground to one transport
// attempt. Send never blocks; events are dropped when the buffer is full or
// the forwarder is closed.
type Forwarder struct {
	mu      sync.Mutex
	ch      chan domain.InputEvent
	closed  bool
	dropped uint64
}

func NewForwarder(buffer int) *Forwarder {
	if buffer <= 0 {
		buffer = defaultForwarderBuffer
	}

	return &Forwarder{ch: make(chan domain.InputEvent, buffer)}
}

func (f *Forwarder) Send(event domain.InputEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.dropped++
		return false
	}

	select {
	case f.ch <- event:
		return true
	default:
		f.dropped++
		return false
	}
}

// Events is the receive side handed to the transport.
func (f *Forwarder) Events() <-chan domain.InputEvent {
	return f.ch
}

// Close is idempotent.
func (f *Forwarder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	close(f.ch)
}

func (f *Forwarder) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

func (f *Forwarder) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.dropped
}
