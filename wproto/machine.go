package wproto

import (
	"errors"
	"fmt"
)

// ErrBlocked is returned by [SendMachine.Write] and [SendMachine.WriteChunks]
// when flow control permits no further data on the stream.
//
// Blocked is not a failure.
// The stream layer suspends the operation and retries
// after the connection driver reports new credit.
var ErrBlocked = errors.New("stream blocked on flow control")

// ErrClosedStream is returned when the requested operation targets
// a stream that was already finished or reset.
//
// For [SendMachine.Stopped] it additionally means the stream
// was finished and every written byte has been received by the peer,
// at which point a peer stop is no longer meaningful.
var ErrClosedStream = errors.New("closed stream")

// StreamStoppedError is returned when the peer has signaled
// that it no longer wants data on the stream.
type StreamStoppedError struct {
	// The application error code the peer supplied.
	Code ErrorCode
}

func (e StreamStoppedError) Error() string {
	return fmt.Sprintf("stream stopped by peer: error %d", uint64(e.Code))
}

// SendMachine is the send half of a per-connection protocol state machine.
//
// Every method is a single non-blocking step.
// Implementations must be safe for concurrent use:
// the stream layer calls these methods under its own connection lock,
// but the connection driver calls the implementation's
// driver-facing methods independently.
type SendMachine interface {
	// Write consumes up to len(p) bytes from p into the stream's
	// send buffer, bounded by flow control.
	//
	// It returns the number of bytes consumed on success,
	// [ErrBlocked] if flow control permits nothing,
	// a [StreamStoppedError] if the peer stopped the stream,
	// or [ErrClosedStream] if the stream was finished or reset.
	//
	// An empty p succeeds with zero bytes.
	Write(id StreamID, p []byte) (int, error)

	// WriteChunks consumes as many whole chunks as flow control permits,
	// plus an optional prefix of the next chunk.
	//
	// Consumed data is removed from the sequence in place:
	// fully consumed chunks are reduced to length zero,
	// and a partially consumed chunk is advanced past its prefix.
	// The error outcomes match [SendMachine.Write].
	WriteChunks(id StreamID, chunks [][]byte) (Written, error)

	// Finish records that no more data will be written to the stream.
	// Buffered data continues to be delivered.
	//
	// Returns a [StreamStoppedError] if the peer already stopped
	// the stream, or [ErrClosedStream] if already finished or reset.
	Finish(id StreamID) error

	// Reset abandons the stream.
	// Buffered data is discarded and lost data is not retransmitted.
	//
	// Returns [ErrClosedStream] if already finished or reset.
	Reset(id StreamID, code ErrorCode) error

	// SetPriority sets the stream's scheduling hint.
	// Returns [ErrClosedStream] if already finished or reset.
	SetPriority(id StreamID, priority int32) error

	// Priority reports the stream's scheduling hint.
	// Returns [ErrClosedStream] if already finished or reset.
	Priority(id StreamID) (int32, error)

	// Stopped reports whether the peer has stopped the stream.
	//
	// It returns (code, true, nil) once the peer signaled stop,
	// (0, false, nil) while the outcome is undetermined,
	// and (0, false, [ErrClosedStream]) once the stream was reset
	// or was finished and fully received by the peer.
	Stopped(id StreamID) (ErrorCode, bool, error)

	// ZeroRTTRejected reports whether the connection's
	// 0-RTT data was rejected by the peer.
	//
	// Streams opened before the handshake completed are
	// permanently failed once this reports true.
	ZeroRTTRejected() bool
}
