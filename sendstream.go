package wyrm

import (
	"context"
	"errors"
	"sync"

	"github.com/gordian-engine/wyrm/wproto"
)

// SendStream is a stream that can only be used to send data.
//
// A SendStream that is no longer needed must be closed.
// Streams that were not explicitly [SendStream.Reset]
// are implicitly finished on [SendStream.Close],
// continuing to (re)transmit previously written data
// until it has been fully acknowledged or the connection is closed.
//
// # Cancellation
//
// A write method is cancel-safe when canceling its context
// before the method returns always results in
// no data having been written to the stream by that call.
// This is true of methods which succeed as soon as any progress is made,
// and is not true of methods which may need multiple internal
// write steps before succeeding.
// Each write method documents whether it is cancel-safe.
//
// # Concurrency
//
// A SendStream may be moved freely between goroutines,
// but it is not safe for concurrent use:
// callers must serialize operations on one stream themselves.
// Streams of the same connection are independent of each other.
type SendStream struct {
	conn *ConnState
	id   wproto.StreamID

	// Whether the stream was opened as 0-RTT early data,
	// before the handshake completed.
	// Immutable after construction.
	earlyData bool

	closeOnce sync.Once
}

// NewSendStream returns the handle for the stream with the given ID.
//
// The layer that opens streams is responsible for allocating IDs
// and for creating at most one handle per stream.
// earlyData marks streams opened speculatively as 0-RTT data,
// which the peer may retroactively reject.
func NewSendStream(conn *ConnState, id wproto.StreamID, earlyData bool) *SendStream {
	return &SendStream{
		conn: conn,
		id:   id,

		earlyData: earlyData,
	}
}

// ID returns the identity of this stream.
func (s *SendStream) ID() wproto.StreamID {
	return s.id
}

// runLocked executes one step of a write-family operation
// under the connection lock.
//
// It validates the connection's preconditions,
// delegates op to the protocol state machine,
// and translates the outcome:
// on success it wakes the connection driver and returns (nil, nil);
// on flow-control blockage it registers a wakeup for this stream
// and returns the channel to suspend on;
// otherwise it returns the translated error.
func (s *SendStream) runLocked(op func(wproto.SendMachine) error) (<-chan struct{}, error) {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.earlyData && c.machine.ZeroRTTRejected() {
		return nil, ErrZeroRTTRejected
	}
	if c.err != nil {
		return nil, ConnectionLostError{Reason: c.err}
	}

	err := op(c.machine)
	if errors.Is(err, wproto.ErrBlocked) {
		// Register before re-checking:
		// the driver may grant credit between the first attempt
		// and the registration, and its wakeup must not be missed.
		// The driver's wake call serializes on the connection lock,
		// so credit arriving after the re-check finds the registration.
		ch := make(chan struct{})
		c.blockedWriters[s.id] = ch

		err = op(c.machine)
		if errors.Is(err, wproto.ErrBlocked) {
			return ch, nil
		}
		delete(c.blockedWriters, s.id)
	}

	var stopped wproto.StreamStoppedError
	switch {
	case err == nil:
		// Data or state is ready for the wire now.
		c.wakeDriverLocked()
		return nil, nil

	case errors.As(err, &stopped):
		return nil, StoppedError{Code: stopped.Code}

	case errors.Is(err, wproto.ErrClosedStream):
		return nil, ErrClosedStream

	default:
		return nil, err
	}
}

// Finish notifies the peer that no more data will ever be
// written to this stream.
//
// It is an error to write to a SendStream after finishing it.
// [SendStream.Reset] may still be called after Finish
// to abandon transmission of stream data that might still be buffered.
//
// To wait for the peer to receive all buffered stream data,
// see [SendStream.Stopped].
//
// Finish returns [ErrClosedStream] if Finish or Reset
// was previously called.
// That error is harmless and serves only to indicate that the caller
// may have incorrect assumptions about the stream's state.
func (s *SendStream) Finish() error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return ConnectionLostError{Reason: c.err}
	}

	err := c.machine.Finish(s.id)

	var stopped wproto.StreamStoppedError
	switch {
	case err == nil:
		c.wakeDriverLocked()
		return nil

	case errors.As(err, &stopped):
		// Harmless: the stream's outcome is already determined.
		// If the application needs to know about stopped streams
		// at this point, it should call Stopped.
		return nil

	case errors.Is(err, wproto.ErrClosedStream):
		return ErrClosedStream

	default:
		return err
	}
}

// Reset closes the send stream immediately.
//
// No new data can be written after calling Reset.
// Locally buffered data is dropped,
// and previously transmitted data will no longer be
// retransmitted if lost.
// If an attempt had already been made to finish the stream,
// the peer may still receive all written data.
//
// Resetting an early-data stream whose 0-RTT was rejected
// succeeds trivially without touching protocol state;
// from the peer's perspective the stream never existed.
//
// Reset returns [ErrClosedStream] if Finish or Reset
// was previously called.
// That error is harmless and serves only to indicate that the caller
// may have incorrect assumptions about the stream's state.
func (s *SendStream) Reset(code wproto.ErrorCode) error {
	wproto.CheckErrorCode(code)

	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.earlyData && c.machine.ZeroRTTRejected() {
		return nil
	}
	if c.err != nil {
		return ConnectionLostError{Reason: c.err}
	}

	if err := c.machine.Reset(s.id, code); err != nil {
		if errors.Is(err, wproto.ErrClosedStream) {
			return ErrClosedStream
		}
		return err
	}

	c.wakeDriverLocked()
	return nil
}

// SetPriority sets the priority of the send stream.
//
// Every send stream has an initial priority of 0.
// Locally buffered data from streams with higher priority
// is transmitted before data from streams with lower priority.
// Changing the priority of a stream with pending data
// may only take effect after that data has been transmitted.
// Using many distinct priority levels per connection
// may have a negative impact on performance.
func (s *SendStream) SetPriority(priority int32) error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return ConnectionLostError{Reason: c.err}
	}

	if err := c.machine.SetPriority(s.id, priority); err != nil {
		if errors.Is(err, wproto.ErrClosedStream) {
			return ErrClosedStream
		}
		return err
	}
	return nil
}

// Priority returns the priority of the send stream.
func (s *SendStream) Priority() (int32, error) {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return 0, ConnectionLostError{Reason: c.err}
	}

	p, err := c.machine.Priority(s.id)
	if err != nil {
		if errors.Is(err, wproto.ErrClosedStream) {
			return 0, ErrClosedStream
		}
		return 0, err
	}
	return p, nil
}

// Stopped completes when the stream is stopped
// or read to completion by the peer.
//
// It returns (code, true, nil) once the peer signals
// that it no longer wants data on this stream.
// It returns (0, false, nil) once the stream was finished locally
// and all written data has been received (though not necessarily
// processed) by the peer, after which it is no longer meaningful
// for the stream to be stopped.
// These two outcomes are mutually exclusive and terminal
// for a given stream.
//
// The error is non-nil only if the connection is lost
// or the stream's 0-RTT data was rejected.
//
// This operation is cancel-safe.
func (s *SendStream) Stopped(ctx context.Context) (wproto.ErrorCode, bool, error) {
	for {
		code, ok, wait, err := s.checkStopped()
		if err != nil {
			return 0, false, err
		}
		if wait == nil {
			return code, ok, nil
		}

		select {
		case <-ctx.Done():
			return 0, false, context.Cause(ctx)
		case <-wait:
			// Woken; check again.
		}
	}
}

// checkStopped runs one stop-monitoring step under the connection lock.
// A non-nil wait channel means the outcome is still undetermined
// and a wakeup was registered.
func (s *SendStream) checkStopped() (
	code wproto.ErrorCode, ok bool, wait <-chan struct{}, err error,
) {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.earlyData && c.machine.ZeroRTTRejected() {
		return 0, false, nil, ErrZeroRTTRejected
	}
	if c.err != nil {
		return 0, false, nil, ConnectionLostError{Reason: c.err}
	}

	code, ok, err = c.machine.Stopped(s.id)
	if err == nil && !ok {
		// Register before re-checking, as in runLocked,
		// so a concurrent stop signal or completing acknowledgment
		// from the driver is not missed.
		ch := make(chan struct{})
		c.stopWatchers[s.id] = ch

		code, ok, err = c.machine.Stopped(s.id)
		if err == nil && !ok {
			return 0, false, ch, nil
		}
		delete(c.stopWatchers, s.id)
	}

	switch {
	case err == nil:
		return code, true, nil, nil

	default:
		// The stream is finished and fully received, or was reset.
		// Being stopped is no longer meaningful; this is not a failure.
		return 0, false, nil, nil
	}
}

// Close releases the stream handle.
//
// Any suspended wakeup registrations for the stream are removed,
// and a stream that was neither finished nor reset
// is implicitly finished, so data written before the close
// continues to be retransmitted until acknowledged
// or the connection closes.
// If the peer had already stopped the stream,
// the implicit finish becomes a reset with the peer's code instead.
//
// Close never fails; it always returns nil.
// Only the first call has any effect.
func (s *SendStream) Close() error {
	s.closeOnce.Do(s.release)
	return nil
}

// release is the single-shot cleanup behind [SendStream.Close].
func (s *SendStream) release() {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	// The handle is going away, so wakeups registered for it
	// must not linger in the shared maps.
	delete(c.blockedWriters, s.id)
	delete(c.stopWatchers, s.id)

	if c.err != nil || (s.earlyData && c.machine.ZeroRTTRejected()) {
		// The stream's fate is already decided or irrelevant.
		return
	}

	err := c.machine.Finish(s.id)

	var stopped wproto.StreamStoppedError
	switch {
	case err == nil:
		c.wakeDriverLocked()

	case errors.As(err, &stopped):
		// The peer does not want this data;
		// abandon it explicitly rather than leaving it ambiguous.
		if c.machine.Reset(s.id, stopped.Code) == nil {
			c.wakeDriverLocked()
		}

	default:
		// Already finished or reset, which is fine.
	}
}
