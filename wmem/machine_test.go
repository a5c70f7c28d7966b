package wmem_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/wyrm/internal/wtest"
	"github.com/gordian-engine/wyrm/wmem"
	"github.com/gordian-engine/wyrm/wproto"
)

func newMachine(t *testing.T, credit int64, ids ...wproto.StreamID) *wmem.Machine {
	t.Helper()

	m := wmem.NewMachine(wmem.Config{InitialStreamCredit: credit})
	for _, id := range ids {
		require.NoError(t, m.CreateStream(id))
	}
	return m
}

// drain collects every currently sendable segment.
func drain(m *wmem.Machine, maxData int) []wmem.Transmit {
	var out []wmem.Transmit
	for {
		tr, ok := m.NextTransmit(maxData)
		if !ok {
			return out
		}
		out = append(out, tr)
	}
}

func TestMachine_CreateStream_duplicate(t *testing.T) {
	t.Parallel()

	m := newMachine(t, 0, 1)
	require.Error(t, m.CreateStream(1))
}

func TestMachine_Write(t *testing.T) {
	t.Parallel()

	t.Run("limited by credit", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 8, 1)

		n, err := m.Write(1, []byte("0123456789"))
		require.NoError(t, err)
		require.Equal(t, 8, n)

		// Credit exhausted now.
		_, err = m.Write(1, []byte("more"))
		require.ErrorIs(t, err, wproto.ErrBlocked)
	})

	t.Run("empty write succeeds even without credit", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 4, 1)

		_, err := m.Write(1, []byte("full"))
		require.NoError(t, err)

		n, err := m.Write(1, nil)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("caller may reuse its buffer", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 64, 1)

		buf := []byte("original")
		_, err := m.Write(1, buf)
		require.NoError(t, err)

		copy(buf, "clobber!")

		trs := drain(m, 0)
		require.Len(t, trs, 1)
		require.Equal(t, []byte("original"), trs[0].Data)
	})

	t.Run("unregistered stream is a bug", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 0)
		require.Panics(t, func() {
			_, _ = m.Write(99, []byte("x"))
		})
	})
}

func TestMachine_AddCredit(t *testing.T) {
	t.Parallel()

	m := newMachine(t, 4, 1)

	_, err := m.Write(1, []byte("full"))
	require.NoError(t, err)

	// New credit on a blocked, open stream should wake the writer.
	require.True(t, m.AddCredit(1, 10))

	n, err := m.Write(1, []byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	// A finished stream has no writer to wake.
	require.NoError(t, m.Finish(1))
	require.False(t, m.AddCredit(1, 10))
}

func TestMachine_WriteChunks(t *testing.T) {
	t.Parallel()

	t.Run("consumes in place up to the credit limit", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 8, 1)

		chunks := [][]byte{
			[]byte("abc"),
			{}, // Counts as trivially consumed.
			[]byte("defgh"),
			[]byte("never reached"),
		}
		w, err := m.WriteChunks(1, chunks)
		require.NoError(t, err)
		// "abc", the empty chunk, and 5 of 5 bytes of "defgh":
		// exactly 8 bytes of credit.
		require.Equal(t, wproto.Written{Chunks: 3}, w)

		require.Empty(t, chunks[0])
		require.Empty(t, chunks[2])
		require.Equal(t, []byte("never reached"), chunks[3])

		// The next chunked write has data but no credit.
		_, err = m.WriteChunks(1, chunks[3:])
		require.ErrorIs(t, err, wproto.ErrBlocked)
	})

	t.Run("partial chunk consumption", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 5, 1)

		chunks := [][]byte{
			[]byte("abc"),
			[]byte("defgh"),
		}
		w, err := m.WriteChunks(1, chunks)
		require.NoError(t, err)
		require.Equal(t, wproto.Written{Chunks: 1, Partial: 2}, w)

		require.Empty(t, chunks[0])
		require.Equal(t, []byte("fgh"), chunks[1])
	})

	t.Run("all-empty input never blocks", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 1, 1)

		_, err := m.Write(1, []byte("x"))
		require.NoError(t, err)

		w, err := m.WriteChunks(1, [][]byte{{}, {}})
		require.NoError(t, err)
		require.Equal(t, wproto.Written{Chunks: 2}, w)
	})
}

func TestMachine_NextTransmit(t *testing.T) {
	t.Parallel()

	t.Run("splits segments at maxData", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 64, 1)

		data := wtest.RandomDataForTest(t, 10)
		_, err := m.Write(1, data)
		require.NoError(t, err)

		trs := drain(m, 4)
		require.Len(t, trs, 3)

		var joined []byte
		var offset uint64
		for i, tr := range trs {
			require.Equal(t, wproto.StreamID(1), tr.Stream)
			require.Equal(t, uint64(i), tr.Segment)
			require.Equal(t, offset, tr.Offset)
			require.False(t, tr.Fin)

			joined = append(joined, tr.Data...)
			offset += uint64(len(tr.Data))
		}
		require.Equal(t, data, joined)
	})

	t.Run("closing segment goes out after all data", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 64, 1)

		_, err := m.Write(1, []byte("bye"))
		require.NoError(t, err)
		require.NoError(t, m.Finish(1))

		trs := drain(m, 0)
		require.Len(t, trs, 2)
		require.Equal(t, []byte("bye"), trs[0].Data)

		fin := trs[1]
		require.True(t, fin.Fin)
		require.Empty(t, fin.Data)
		require.Equal(t, uint64(3), fin.Offset)
	})

	t.Run("higher priority streams go first", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 64, 1, 2, 3)

		for _, id := range []wproto.StreamID{1, 2, 3} {
			_, err := m.Write(id, []byte("data"))
			require.NoError(t, err)
		}
		require.NoError(t, m.SetPriority(2, 5))

		trs := drain(m, 0)
		require.Len(t, trs, 3)
		require.Equal(t, wproto.StreamID(2), trs[0].Stream)
		// Equal priorities break ties toward the lowest ID.
		require.Equal(t, wproto.StreamID(1), trs[1].Stream)
		require.Equal(t, wproto.StreamID(3), trs[2].Stream)
	})

	t.Run("nothing sendable", func(t *testing.T) {
		t.Parallel()

		m := newMachine(t, 64, 1)

		_, ok := m.NextTransmit(0)
		require.False(t, ok)
	})
}

func TestMachine_lossAndRetransmission(t *testing.T) {
	t.Parallel()

	m := newMachine(t, 64, 1)

	_, err := m.Write(1, []byte("abcd"))
	require.NoError(t, err)
	_, err = m.Write(1, []byte("efgh"))
	require.NoError(t, err)

	trs := drain(m, 0)
	require.Len(t, trs, 2)

	// Segment 0 is acknowledged, segment 1 is lost.
	require.False(t, m.HandleAck(1, 0))
	require.True(t, m.HandleLoss(1, 1))

	// Retransmissions go out before new data.
	_, err = m.Write(1, []byte("new"))
	require.NoError(t, err)

	trs = drain(m, 0)
	require.Len(t, trs, 2)
	require.Equal(t, uint64(1), trs[0].Segment)
	require.Equal(t, []byte("efgh"), trs[0].Data)
	require.Equal(t, uint64(4), trs[0].Offset)
	require.Equal(t, []byte("new"), trs[1].Data)

	// An acknowledged segment is never retransmitted.
	require.False(t, m.HandleLoss(1, 0))
	// Nor is a segment number that was never sent.
	require.False(t, m.HandleLoss(1, 17))
}

func TestMachine_stopSending(t *testing.T) {
	t.Parallel()

	m := newMachine(t, 64, 1)

	_, err := m.Write(1, []byte("pending"))
	require.NoError(t, err)

	require.True(t, m.HandleStopSending(1, 6))
	// The signal is recorded only once.
	require.False(t, m.HandleStopSending(1, 7))

	code, ok, err := m.Stopped(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wproto.ErrorCode(6), code)

	// Writes now fail with the peer's code.
	_, err = m.Write(1, []byte("more"))
	var stopped wproto.StreamStoppedError
	require.ErrorAs(t, err, &stopped)
	require.Equal(t, wproto.ErrorCode(6), stopped.Code)

	// Buffered data of a stopped stream stays off the wire.
	_, ok = m.NextTransmit(0)
	require.False(t, ok)
}

func TestMachine_fullyReceived(t *testing.T) {
	t.Parallel()

	m := newMachine(t, 64, 1)

	_, err := m.Write(1, []byte("abcd"))
	require.NoError(t, err)
	require.NoError(t, m.Finish(1))

	// Not terminal until everything, including the
	// closing segment, is acknowledged.
	code, ok, err := m.Stopped(1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, code)

	trs := drain(m, 0)
	require.Len(t, trs, 2)

	require.False(t, m.HandleAck(1, trs[0].Segment))
	// The final acknowledgment completes the stream.
	require.True(t, m.HandleAck(1, trs[1].Segment))

	_, _, err = m.Stopped(1)
	require.ErrorIs(t, err, wproto.ErrClosedStream)

	// A late peer stop signal is meaningless now.
	require.False(t, m.HandleStopSending(1, 6))
}

func TestMachine_Reset(t *testing.T) {
	t.Parallel()

	m := newMachine(t, 64, 1)

	_, err := m.Write(1, []byte("abcd"))
	require.NoError(t, err)
	_, err = m.Write(1, []byte("efgh"))
	require.NoError(t, err)

	// First segment reaches the wire and is lost;
	// the second write stays buffered.
	tr, ok := m.NextTransmit(4)
	require.True(t, ok)
	require.Equal(t, []byte("abcd"), tr.Data)

	require.NoError(t, m.Reset(1, 3))

	// Buffered data is dropped and the lost segment
	// is not retransmitted.
	require.False(t, m.HandleLoss(1, tr.Segment))
	_, ok = m.NextTransmit(0)
	require.False(t, ok)

	// The stream is closed for everything else.
	_, err = m.Write(1, []byte("x"))
	require.ErrorIs(t, err, wproto.ErrClosedStream)
	require.ErrorIs(t, m.Finish(1), wproto.ErrClosedStream)
	require.ErrorIs(t, m.Reset(1, 4), wproto.ErrClosedStream)

	_, _, err = m.Stopped(1)
	require.ErrorIs(t, err, wproto.ErrClosedStream)
}

func TestMachine_Priority(t *testing.T) {
	t.Parallel()

	m := newMachine(t, 64, 1)

	p, err := m.Priority(1)
	require.NoError(t, err)
	require.Zero(t, p)

	require.NoError(t, m.SetPriority(1, -2))

	p, err = m.Priority(1)
	require.NoError(t, err)
	require.Equal(t, int32(-2), p)

	require.NoError(t, m.Finish(1))
	require.ErrorIs(t, m.SetPriority(1, 1), wproto.ErrClosedStream)

	_, err = m.Priority(1)
	require.ErrorIs(t, err, wproto.ErrClosedStream)
}

func TestMachine_zeroRTT(t *testing.T) {
	t.Parallel()

	m := newMachine(t, 64)
	require.False(t, m.ZeroRTTRejected())

	m.RejectZeroRTT()
	require.True(t, m.ZeroRTTRejected())
}
