package wtest

import (
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
)

// NewLogger returns a logger associated with t,
// so that log output is collated with the test's own output
// and only shown for failed tests (or with go test -v).
func NewLogger(t *testing.T) *slog.Logger {
	return slogt.New(t)
}
