package wproto

import (
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"
)

// StreamID identifies one stream within a connection.
//
// IDs are opaque to the stream layer.
// The layer that opens streams is responsible for
// allocating IDs that are unique within their connection.
type StreamID uint64

// ErrorCode is an application-defined code carried by
// stream resets and peer stop signals.
//
// Codes are encoded on the wire as QUIC variable-length integers,
// so they must fit in 62 bits.
type ErrorCode uint64

// CheckErrorCode panics if code does not fit
// in a QUIC variable-length integer.
func CheckErrorCode(code ErrorCode) {
	if uint64(code) > quicvarint.Max {
		panic(fmt.Errorf(
			"BUG: stream error code must fit in 62 bits (got 0x%x)", uint64(code),
		))
	}
}

// Written reports the progress of one chunked write.
//
// Callers use it to advance their own cursor
// over the chunk sequence they are writing.
type Written struct {
	// The number of whole chunks fully consumed.
	Chunks int

	// The number of bytes consumed from the next,
	// partially consumed chunk, if any.
	Partial int
}
