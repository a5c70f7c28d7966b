package wyrm

import (
	"context"
	"errors"
	"io"
)

// ContextWriter adapts a [SendStream] to [io.WriteCloser],
// binding every write to a fixed context.
//
// Create an instance with [NewContextWriter].
type ContextWriter struct {
	ctx context.Context
	s   *SendStream
}

// NewContextWriter returns a writer whose Write calls
// are bounded by ctx.
//
// Because [io.Writer] has no cancellation of its own,
// Write is not cancel-safe: on error it reports
// how many bytes were written before the failure.
func NewContextWriter(ctx context.Context, s *SendStream) *ContextWriter {
	return &ContextWriter{ctx: ctx, s: s}
}

var _ io.WriteCloser = (*ContextWriter)(nil)

func (w *ContextWriter) Write(p []byte) (int, error) {
	var total int
	for total < len(p) {
		n, err := w.s.Write(w.ctx, p[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Close finishes the stream and releases the handle.
//
// An already finished or reset stream is not an error here,
// matching the advisory nature of [SendStream.Finish].
func (w *ContextWriter) Close() error {
	if err := w.s.Finish(); err != nil && !errors.Is(err, ErrClosedStream) {
		return err
	}
	return w.s.Close()
}
