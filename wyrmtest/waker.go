package wyrmtest

import (
	"github.com/gordian-engine/wyrm"
)

// StubWaker records driver wake signals on a channel
// so tests can assert whether the stream layer
// signaled the connection driver.
type StubWaker struct {
	// Receives one value per delivered wake.
	// Buffered; excess wakes beyond the buffer are dropped,
	// matching the advisory, coalescing nature of the signal.
	Wakes chan struct{}
}

var _ wyrm.Waker = (*StubWaker)(nil)

// NewStubWaker returns a StubWaker ready for use.
func NewStubWaker() *StubWaker {
	return &StubWaker{
		Wakes: make(chan struct{}, 64),
	}
}

// Wake implements [wyrm.Waker]. It never blocks.
func (w *StubWaker) Wake() {
	select {
	case w.Wakes <- struct{}{}:
	default:
	}
}
