package wdriver

import (
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"

	"github.com/gordian-engine/wyrm/wmem"
	"github.com/gordian-engine/wyrm/wproto"
)

// Frame layout, all integers QUIC variable-length:
// stream ID, segment number, stream offset,
// one fin byte (0 or 1), data length, data.

// AppendFrame appends the wire encoding of t to b.
func AppendFrame(b []byte, t wmem.Transmit) []byte {
	if uint64(t.Stream) > quicvarint.Max {
		panic(fmt.Errorf(
			"BUG: stream ID must fit in 62 bits (got 0x%x)", uint64(t.Stream),
		))
	}

	b = quicvarint.Append(b, uint64(t.Stream))
	b = quicvarint.Append(b, t.Segment)
	b = quicvarint.Append(b, t.Offset)
	if t.Fin {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = quicvarint.Append(b, uint64(len(t.Data)))
	return append(b, t.Data...)
}

// ParseFrame decodes one frame from the front of b,
// returning the decoded transmit and the number of bytes consumed.
//
// The returned transmit's Data aliases b.
func ParseFrame(b []byte) (wmem.Transmit, int, error) {
	var t wmem.Transmit
	var read int

	id, n, err := quicvarint.Parse(b[read:])
	if err != nil {
		return t, 0, fmt.Errorf("failed to parse stream ID: %w", err)
	}
	read += n
	t.Stream = wproto.StreamID(id)

	t.Segment, n, err = quicvarint.Parse(b[read:])
	if err != nil {
		return t, 0, fmt.Errorf("failed to parse segment number: %w", err)
	}
	read += n

	t.Offset, n, err = quicvarint.Parse(b[read:])
	if err != nil {
		return t, 0, fmt.Errorf("failed to parse stream offset: %w", err)
	}
	read += n

	if read >= len(b) {
		return t, 0, fmt.Errorf("frame truncated before fin byte")
	}
	switch b[read] {
	case 0:
		// Not fin.
	case 1:
		t.Fin = true
	default:
		return t, 0, fmt.Errorf("invalid fin byte 0x%x", b[read])
	}
	read++

	dataLen, n, err := quicvarint.Parse(b[read:])
	if err != nil {
		return t, 0, fmt.Errorf("failed to parse data length: %w", err)
	}
	read += n

	if uint64(len(b)-read) < dataLen {
		return t, 0, fmt.Errorf(
			"frame truncated: %d data bytes declared, %d available",
			dataLen, len(b)-read,
		)
	}
	if dataLen > 0 {
		t.Data = b[read : read+int(dataLen)]
		read += int(dataLen)
	}

	return t, read, nil
}
