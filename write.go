package wyrm

import (
	"context"

	"github.com/gordian-engine/wyrm/wproto"
)

// Write writes bytes to the stream.
//
// It returns the number of bytes written, which may be shorter
// than len(p) when congestion or flow control limit progress;
// in that case only a prefix of p was written.
// For non-empty p the count is never zero:
// rather than accept nothing, Write suspends until
// the connection driver reports new credit.
//
// This operation is cancel-safe:
// if ctx is canceled before Write returns,
// no bytes were written by this call.
func (s *SendStream) Write(ctx context.Context, p []byte) (int, error) {
	var n int
	for {
		wait, err := s.runLocked(func(m wproto.SendMachine) error {
			var err error
			n, err = m.Write(s.id, p)
			return err
		})
		if err != nil {
			return 0, err
		}
		if wait == nil {
			return n, nil
		}

		select {
		case <-ctx.Done():
			return 0, context.Cause(ctx)
		case <-wait:
			// Credit may be available; try again.
		}
	}
}

// WriteAll writes the entire buffer to the stream.
//
// This operation is not cancel-safe:
// if ctx is canceled mid-flight, an unknown prefix of p
// has already been written with no way to learn how much.
// Callers that need to resume after cancellation
// must use [SendStream.Write] instead.
func (s *SendStream) WriteAll(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		n, err := s.Write(ctx, p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// WriteChunks writes an ordered sequence of chunks to the stream.
//
// As many whole chunks as flow control permits are consumed,
// plus an optional prefix of the next chunk.
// Consumed data is removed from chunks in place:
// fully consumed chunks are reduced to length zero
// and a partially consumed chunk is advanced past its prefix,
// so the returned [wproto.Written] lets callers advance
// their own cursor over the sequence.
//
// This operation is cancel-safe, with the same contract
// as [SendStream.Write].
func (s *SendStream) WriteChunks(ctx context.Context, chunks [][]byte) (wproto.Written, error) {
	var w wproto.Written
	for {
		wait, err := s.runLocked(func(m wproto.SendMachine) error {
			var err error
			w, err = m.WriteChunks(s.id, chunks)
			return err
		})
		if err != nil {
			return wproto.Written{}, err
		}
		if wait == nil {
			return w, nil
		}

		select {
		case <-ctx.Done():
			return wproto.Written{}, context.Cause(ctx)
		case <-wait:
		}
	}
}

// WriteChunk writes a single chunk in its entirety to the stream.
//
// This operation is not cancel-safe.
func (s *SendStream) WriteChunk(ctx context.Context, chunk []byte) error {
	// One-element view, truncated in place as data is consumed.
	view := [][]byte{chunk}
	for len(view[0]) > 0 {
		if _, err := s.WriteChunks(ctx, view); err != nil {
			return err
		}
	}
	return nil
}

// WriteAllChunks writes an entire sequence of chunks to the stream.
//
// Chunks that were already fully consumed
// (reduced to length zero) are skipped.
//
// This operation is not cancel-safe.
func (s *SendStream) WriteAllChunks(ctx context.Context, chunks [][]byte) error {
	offset := 0
	for offset < len(chunks) {
		if len(chunks[offset]) == 0 {
			offset++
			continue
		}

		w, err := s.WriteChunks(ctx, chunks[offset:])
		if err != nil {
			return err
		}
		offset += w.Chunks
	}
	return nil
}
