package wyrm

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/wyrm/wproto"
)

// ErrClosedStream is returned when an operation targets a stream
// that was already finished or reset.
//
// For [SendStream.Finish] and [SendStream.Reset] this error is advisory:
// the operation's goal was already achieved or is moot,
// and callers should generally ignore it.
// For writes it is a hard failure.
var ErrClosedStream = errors.New("closed stream")

// ErrZeroRTTRejected is returned from operations on an early-data stream
// after the server rejected the connection's 0-RTT data.
//
// Data written speculatively to such a stream will never be delivered.
// This can only occur on clients.
var ErrZeroRTTRejected = errors.New("0-RTT rejected")

// StoppedError is returned from writes when the peer has signaled
// that it is no longer accepting data on the stream.
//
// It is terminal for the stream but not for the connection.
type StoppedError struct {
	// The application-defined code the peer supplied.
	Code wproto.ErrorCode
}

func (e StoppedError) Error() string {
	return fmt.Sprintf("sending stopped by peer: error %d", uint64(e.Code))
}

// ConnectionLostError is returned once the connection has
// a terminal error.
// Every further operation on every stream of the connection
// fails with the same reason.
type ConnectionLostError struct {
	// The connection's terminal error.
	Reason error
}

func (e ConnectionLostError) Error() string {
	return "connection lost: " + e.Reason.Error()
}

func (e ConnectionLostError) Unwrap() error {
	return e.Reason
}
