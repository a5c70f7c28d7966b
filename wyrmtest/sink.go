package wyrmtest

import (
	"fmt"

	"github.com/gordian-engine/wyrm/wdriver"
	"github.com/gordian-engine/wyrm/wmem"
)

// RecordingSink is a [wdriver.PacketSink] that decodes
// every packet it receives and records the result,
// so tests can assert on what reached the wire.
type RecordingSink struct {
	// Receives one decoded transmit per packet, in send order.
	Frames chan wmem.Transmit

	// When non-nil, SendPacket returns this error
	// instead of recording the packet.
	Err error
}

var _ wdriver.PacketSink = (*RecordingSink)(nil)

// NewRecordingSink returns a RecordingSink
// with room for plenty of frames.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		Frames: make(chan wmem.Transmit, 64),
	}
}

// SendPacket implements [wdriver.PacketSink].
func (s *RecordingSink) SendPacket(p []byte) error {
	if s.Err != nil {
		return s.Err
	}

	t, n, err := wdriver.ParseFrame(p)
	if err != nil {
		return fmt.Errorf("malformed packet: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("trailing bytes after frame: %d of %d consumed", n, len(p))
	}

	// The parsed data aliases p, which the driver will not reuse,
	// so no copy is needed.
	s.Frames <- t
	return nil
}
