package wmem

import (
	"github.com/gordian-engine/wyrm/wproto"
)

// Transmit is one unit of stream data the connection driver
// should put on the wire.
//
// Segment numbers are per-stream and dense;
// the driver reports delivery outcomes back through
// [Machine.HandleAck] and [Machine.HandleLoss] by segment number.
type Transmit struct {
	Stream wproto.StreamID

	// Per-stream segment number.
	Segment uint64

	// Byte offset of Data within the stream.
	Offset uint64

	// The segment payload. Callers must not modify it.
	// Empty for a pure closing segment.
	Data []byte

	// Whether this segment ends the stream.
	Fin bool
}

// NextTransmit returns the next segment to put on the wire,
// or false if nothing is currently sendable.
//
// Streams are served highest priority first,
// lowest stream ID breaking ties.
// Within one stream, retransmissions go out before new data,
// and the closing segment goes out once all data has been accepted.
// New segments carry at most maxData bytes
// (non-positive maxData means unbounded);
// retransmissions reuse their original bounds.
func (m *Machine) NextTransmit(maxData int) (Transmit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, st, ok := m.nextSendableLocked()
	if !ok {
		return Transmit{}, false
	}

	// Retransmissions first: the peer is already waiting on them.
	if len(st.retransmit) > 0 {
		segNum := st.retransmit[0]
		st.retransmit = st.retransmit[1:]

		seg := st.segments[segNum]
		return Transmit{
			Stream:  id,
			Segment: segNum,
			Offset:  seg.offset,
			Data:    seg.data,
			Fin:     seg.fin,
		}, true
	}

	if len(st.pending) > 0 {
		data := st.pending[0]
		if len(data) > maxData && maxData > 0 {
			st.pending[0] = data[maxData:]
			data = data[:maxData]
		} else {
			st.pending = st.pending[1:]
		}

		seg := segment{offset: st.offset, data: data}
		st.offset += uint64(len(data))
		st.segments = append(st.segments, seg)

		return Transmit{
			Stream:  id,
			Segment: uint64(len(st.segments) - 1),
			Offset:  seg.offset,
			Data:    seg.data,
		}, true
	}

	// Finished with all data handed off: emit the closing segment.
	seg := segment{offset: st.offset, fin: true}
	st.finSent = true
	st.segments = append(st.segments, seg)

	return Transmit{
		Stream:  id,
		Segment: uint64(len(st.segments) - 1),
		Offset:  seg.offset,
		Fin:     true,
	}, true
}

// nextSendableLocked picks the sendable stream with the highest priority,
// breaking ties toward the lowest stream ID.
// The caller must hold m.mu.
func (m *Machine) nextSendableLocked() (wproto.StreamID, *sendState, bool) {
	var bestID wproto.StreamID
	var best *sendState

	for id, st := range m.streams {
		if !st.sendable() {
			continue
		}
		if best == nil ||
			st.priority > best.priority ||
			(st.priority == best.priority && id < bestID) {
			bestID, best = id, st
		}
	}

	return bestID, best, best != nil
}

// sendable reports whether the stream has anything for the wire:
// a queued retransmission, pending data,
// or an unsent closing segment.
func (st *sendState) sendable() bool {
	if st.reset || st.stopped {
		return false
	}
	return len(st.retransmit) > 0 ||
		len(st.pending) > 0 ||
		(st.finished && !st.finSent)
}
