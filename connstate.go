package wyrm

import (
	"sync"

	"github.com/gordian-engine/wyrm/wproto"
)

// Waker is the stream layer's advisory signal to the connection driver,
// meaning "re-examine this connection for sendable work".
//
// Wake is called while the connection lock is held,
// so implementations must not block;
// a coalescing signal such as a non-blocking send
// on a 1-buffered channel is the expected shape.
type Waker interface {
	Wake()
}

// ConnState is the shared state of one connection,
// coordinating every [SendStream] of that connection
// with the protocol state machine and the connection driver.
//
// The stream layer mutates ConnState only under its single lock,
// and only for the duration of one step of one operation,
// never across a suspension point.
type ConnState struct {
	mu sync.Mutex

	machine wproto.SendMachine
	driver  Waker

	// Terminal connection error.
	// Once set, every operation on every stream fails with it.
	err error

	// Wakeup registrations, keyed by stream ID.
	// A stream ID is present only while an operation is genuinely pending,
	// and each new registration overwrites the prior one:
	// only the most recently suspended operation needs the next wakeup.
	blockedWriters map[wproto.StreamID]chan struct{}
	stopWatchers   map[wproto.StreamID]chan struct{}
}

// NewConnState returns a ConnState coordinating streams
// against the given protocol state machine and connection driver.
//
// A nil driver is allowed, for connections whose driver
// polls the machine on its own schedule.
func NewConnState(machine wproto.SendMachine, driver Waker) *ConnState {
	return &ConnState{
		machine: machine,
		driver:  driver,

		blockedWriters: make(map[wproto.StreamID]chan struct{}),
		stopWatchers:   make(map[wproto.StreamID]chan struct{}),
	}
}

// WakeWriter wakes the writer suspended on the given stream,
// if any, after flow control credit became available.
// Intended to be called by the connection driver.
func (c *ConnState) WakeWriter(id wproto.StreamID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wakeLocked(c.blockedWriters, id)
}

// WakeStopWatcher wakes the stop-monitoring operation
// suspended on the given stream, if any.
// Intended to be called by the connection driver
// when the peer stops a stream or when a finished stream
// becomes fully acknowledged.
func (c *ConnState) WakeStopWatcher(id wproto.StreamID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wakeLocked(c.stopWatchers, id)
}

// SetTerminalError records the connection's terminal error
// and wakes every suspended operation so it can observe the failure.
//
// Only the first call has any effect.
func (c *ConnState) SetTerminalError(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return
	}
	c.err = reason

	for id := range c.blockedWriters {
		wakeLocked(c.blockedWriters, id)
	}
	for id := range c.stopWatchers {
		wakeLocked(c.stopWatchers, id)
	}
}

// wakeLocked removes the registration for id, if any,
// and closes its channel to wake the suspended operation.
// The caller must hold c.mu.
func wakeLocked(m map[wproto.StreamID]chan struct{}, id wproto.StreamID) {
	ch, ok := m[id]
	if !ok {
		return
	}

	delete(m, id)
	close(ch)
}

// wakeDriverLocked signals the connection driver, if there is one.
// The caller must hold c.mu; Waker implementations must not block.
func (c *ConnState) wakeDriverLocked() {
	if c.driver != nil {
		c.driver.Wake()
	}
}
