package wmem

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/gordian-engine/wyrm/wproto"
)

// DefaultInitialStreamCredit is the flow control credit
// granted to each new stream when [Config.InitialStreamCredit] is zero.
const DefaultInitialStreamCredit = 1 << 16

// Config is the configuration for [NewMachine].
type Config struct {
	// The flow control credit granted to each new stream.
	// Zero means [DefaultInitialStreamCredit].
	InitialStreamCredit int64
}

// Machine is an in-memory send-side protocol state machine,
// implementing [wproto.SendMachine] plus the driver-facing operations
// the stream layer itself never calls:
// stream registration, credit grants, transmission,
// acknowledgments, losses, and peer stop signals.
//
// Machine is safe for concurrent use.
// The stream layer reaches it through the connection lock
// while the connection driver calls it directly,
// so it carries its own lock; every method is one short critical section.
type Machine struct {
	mu sync.Mutex

	initialCredit int64

	zeroRTTRejected bool

	streams map[wproto.StreamID]*sendState
}

var _ wproto.SendMachine = (*Machine)(nil)

// sendState is the send half of one stream's protocol state.
type sendState struct {
	priority int32

	// Remaining flow control credit.
	// Writes block at zero.
	credit int64

	// Next untransmitted byte offset in the stream.
	offset uint64

	// Data accepted from writes but not yet transmitted.
	pending [][]byte

	finished bool
	// Whether the closing segment has been handed to the driver.
	finSent bool

	reset   bool
	stopped bool

	stopCode wproto.ErrorCode

	// Transmitted segments, indexed by segment number,
	// retained until acknowledged.
	segments []segment

	// Acknowledged segment numbers.
	acked *bitset.BitSet

	// Segment numbers queued for retransmission.
	retransmit []uint64
}

type segment struct {
	offset uint64
	data   []byte
	fin    bool
}

// NewMachine returns a Machine with no streams.
func NewMachine(cfg Config) *Machine {
	credit := cfg.InitialStreamCredit
	if credit <= 0 {
		credit = DefaultInitialStreamCredit
	}

	return &Machine{
		initialCredit: credit,

		streams: make(map[wproto.StreamID]*sendState),
	}
}

// CreateStream registers the send state for a newly opened stream.
//
// The layer that opens streams must register each ID exactly once,
// before any operation on that stream.
func (m *Machine) CreateStream(id wproto.StreamID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.streams[id]; ok {
		return fmt.Errorf("stream %d already created", id)
	}

	m.streams[id] = &sendState{
		credit: m.initialCredit,

		acked: bitset.New(8),
	}
	return nil
}

// get returns the state for id.
// Operating on an unregistered stream is a caller bug.
// The caller must hold m.mu.
func (m *Machine) get(id wproto.StreamID) *sendState {
	st, ok := m.streams[id]
	if !ok {
		panic(fmt.Errorf("BUG: operation on unregistered stream %d", id))
	}
	return st
}

// Write implements [wproto.SendMachine].
func (m *Machine) Write(id wproto.StreamID, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.finished || st.reset {
		return 0, wproto.ErrClosedStream
	}
	if st.stopped {
		return 0, wproto.StreamStoppedError{Code: st.stopCode}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if st.credit <= 0 {
		return 0, wproto.ErrBlocked
	}

	n := len(p)
	if int64(n) > st.credit {
		n = int(st.credit)
	}

	st.buffer(p[:n])
	return n, nil
}

// WriteChunks implements [wproto.SendMachine].
func (m *Machine) WriteChunks(id wproto.StreamID, chunks [][]byte) (wproto.Written, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.finished || st.reset {
		return wproto.Written{}, wproto.ErrClosedStream
	}
	if st.stopped {
		return wproto.Written{}, wproto.StreamStoppedError{Code: st.stopCode}
	}

	var w wproto.Written
	var consumed int

	for i := range chunks {
		ch := chunks[i]
		if len(ch) == 0 {
			// Trivially consumed.
			w.Chunks++
			continue
		}

		if st.credit <= 0 {
			break
		}

		n := len(ch)
		if int64(n) > st.credit {
			n = int(st.credit)
		}

		st.buffer(ch[:n])
		consumed += n

		if n == len(ch) {
			chunks[i] = ch[:0]
			w.Chunks++
		} else {
			chunks[i] = ch[n:]
			w.Partial = n
			break
		}
	}

	if consumed == 0 && w.Chunks < len(chunks) {
		// There was data to write but flow control permitted none of it.
		return wproto.Written{}, wproto.ErrBlocked
	}
	return w, nil
}

// buffer accepts n bytes into the pending queue,
// consuming credit. The caller must hold m.mu.
func (st *sendState) buffer(p []byte) {
	// The caller may reuse its buffer as soon as the write returns.
	seg := make([]byte, len(p))
	copy(seg, p)

	st.pending = append(st.pending, seg)
	st.credit -= int64(len(p))
}

// Finish implements [wproto.SendMachine].
func (m *Machine) Finish(id wproto.StreamID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.finished || st.reset {
		return wproto.ErrClosedStream
	}
	if st.stopped {
		return wproto.StreamStoppedError{Code: st.stopCode}
	}

	st.finished = true
	return nil
}

// Reset implements [wproto.SendMachine].
func (m *Machine) Reset(id wproto.StreamID, code wproto.ErrorCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.finished || st.reset {
		return wproto.ErrClosedStream
	}

	st.reset = true

	// Buffered data is discarded,
	// and lost segments will not be retransmitted.
	st.pending = nil
	st.retransmit = nil
	return nil
}

// SetPriority implements [wproto.SendMachine].
func (m *Machine) SetPriority(id wproto.StreamID, priority int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.finished || st.reset {
		return wproto.ErrClosedStream
	}

	st.priority = priority
	return nil
}

// Priority implements [wproto.SendMachine].
func (m *Machine) Priority(id wproto.StreamID) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.finished || st.reset {
		return 0, wproto.ErrClosedStream
	}

	return st.priority, nil
}

// Stopped implements [wproto.SendMachine].
func (m *Machine) Stopped(id wproto.StreamID) (wproto.ErrorCode, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.stopped {
		return st.stopCode, true, nil
	}
	if st.reset || st.fullyReceivedLocked() {
		return 0, false, wproto.ErrClosedStream
	}
	return 0, false, nil
}

// fullyReceivedLocked reports whether the stream was finished
// and every transmitted segment, including the closing one,
// has been acknowledged.
func (st *sendState) fullyReceivedLocked() bool {
	return st.finished &&
		st.finSent &&
		len(st.pending) == 0 &&
		len(st.retransmit) == 0 &&
		st.acked.Count() == uint(len(st.segments))
}

// ZeroRTTRejected implements [wproto.SendMachine].
func (m *Machine) ZeroRTTRejected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.zeroRTTRejected
}

// RejectZeroRTT records that the peer rejected
// the connection's 0-RTT data.
// Early-data streams fail permanently from this point.
func (m *Machine) RejectZeroRTT() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.zeroRTTRejected = true
}

// AddCredit grants n more bytes of flow control credit to the stream.
//
// It reports whether a blocked writer could now make progress,
// in which case the driver should wake the stream's writer.
func (m *Machine) AddCredit(id wproto.StreamID, n int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	st.credit += n

	return st.credit > 0 && !st.finished && !st.reset && !st.stopped
}

// HandleStopSending records a peer stop signal for the stream.
//
// It reports whether the signal is new and meaningful,
// in which case the driver should wake the stream's
// stop watcher and any blocked writer.
func (m *Machine) HandleStopSending(id wproto.StreamID, code wproto.ErrorCode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.stopped || st.reset || st.fullyReceivedLocked() {
		// Already stopped, abandoned, or fully received;
		// the stream's outcome cannot change anymore.
		return false
	}

	st.stopped = true
	st.stopCode = code
	return true
}

// HandleAck records that the peer received the given segment.
//
// It reports whether this acknowledgment completed a finished stream,
// in which case the driver should wake the stream's stop watcher
// so it can observe the terminal not-stopped outcome.
func (m *Machine) HandleAck(id wproto.StreamID, seg uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.reset || seg >= uint64(len(st.segments)) {
		return false
	}

	st.acked.Set(uint(seg))
	return st.fullyReceivedLocked()
}

// HandleLoss records that the given segment was lost in transit,
// queueing it for retransmission.
//
// It reports whether a retransmission was queued;
// segments of reset streams and already-acknowledged segments
// are not retransmitted.
func (m *Machine) HandleLoss(id wproto.StreamID, seg uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.get(id)
	if st.reset || seg >= uint64(len(st.segments)) || st.acked.Test(uint(seg)) {
		return false
	}

	st.retransmit = append(st.retransmit, seg)
	return true
}
