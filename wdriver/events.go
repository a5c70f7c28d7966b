package wdriver

import (
	"github.com/gordian-engine/wyrm/wproto"
)

// CreditGrant reports new flow control credit for one stream,
// typically decoded from a peer's window update.
type CreditGrant struct {
	Stream wproto.StreamID
	Bytes  int64
}

// Ack reports that the peer received one transmitted segment.
type Ack struct {
	Stream  wproto.StreamID
	Segment uint64
}

// Loss reports that one transmitted segment
// was declared lost by the transport.
type Loss struct {
	Stream  wproto.StreamID
	Segment uint64
}

// Stop reports a peer's signal that it no longer wants data
// on the given stream.
type Stop struct {
	Stream wproto.StreamID
	Code   wproto.ErrorCode
}
