package wyrm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/wyrm/wproto"
)

// blockedMachine refuses every write for lack of credit
// and never resolves stop monitoring,
// so operations always register wakeups.
type blockedMachine struct{}

func (blockedMachine) Write(wproto.StreamID, []byte) (int, error) {
	return 0, wproto.ErrBlocked
}

func (blockedMachine) WriteChunks(wproto.StreamID, [][]byte) (wproto.Written, error) {
	return wproto.Written{}, wproto.ErrBlocked
}

func (blockedMachine) Finish(wproto.StreamID) error                  { return nil }
func (blockedMachine) Reset(wproto.StreamID, wproto.ErrorCode) error { return nil }
func (blockedMachine) SetPriority(wproto.StreamID, int32) error      { return nil }
func (blockedMachine) Priority(wproto.StreamID) (int32, error)       { return 0, nil }

func (blockedMachine) Stopped(wproto.StreamID) (wproto.ErrorCode, bool, error) {
	return 0, false, nil
}

func (blockedMachine) ZeroRTTRejected() bool { return false }

func TestConnState_reRegistrationOverwrites(t *testing.T) {
	t.Parallel()

	c := NewConnState(blockedMachine{}, nil)
	s := NewSendStream(c, 1, false)

	first, err := s.runLocked(func(m wproto.SendMachine) error {
		_, err := m.Write(s.id, []byte("x"))
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.runLocked(func(m wproto.SendMachine) error {
		_, err := m.Write(s.id, []byte("x"))
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, second)

	// Only the most recent registration receives the next wakeup;
	// the overwritten channel is abandoned, not closed.
	c.WakeWriter(s.id)

	select {
	case <-first:
		t.Fatal("abandoned registration must not be woken")
	default:
	}

	select {
	case <-second:
	default:
		t.Fatal("current registration must be woken")
	}
}

func TestSendStream_Close_sweepsRegistrations(t *testing.T) {
	t.Parallel()

	c := NewConnState(blockedMachine{}, nil)
	s := NewSendStream(c, 1, false)

	_, err := s.runLocked(func(m wproto.SendMachine) error {
		_, err := m.Write(s.id, []byte("x"))
		return err
	})
	require.NoError(t, err)

	_, _, wait, err := s.checkStopped()
	require.NoError(t, err)
	require.NotNil(t, wait)

	c.mu.Lock()
	require.Contains(t, c.blockedWriters, s.id)
	require.Contains(t, c.stopWatchers, s.id)
	c.mu.Unlock()

	require.NoError(t, s.Close())

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Empty(t, c.blockedWriters)
	require.Empty(t, c.stopWatchers)
}

func TestConnState_SetTerminalError_wakesEverything(t *testing.T) {
	t.Parallel()

	c := NewConnState(blockedMachine{}, nil)
	s1 := NewSendStream(c, 1, false)
	s2 := NewSendStream(c, 2, false)

	w1, err := s1.runLocked(func(m wproto.SendMachine) error {
		_, err := m.Write(s1.id, []byte("x"))
		return err
	})
	require.NoError(t, err)

	_, _, w2, err := s2.checkStopped()
	require.NoError(t, err)

	c.SetTerminalError(errors.New("transport gone"))

	for _, ch := range []<-chan struct{}{w1, w2} {
		select {
		case <-ch:
		default:
			t.Fatal("terminal error must wake every suspended operation")
		}
	}

	c.mu.Lock()
	require.Empty(t, c.blockedWriters)
	require.Empty(t, c.stopWatchers)
	c.mu.Unlock()

	// Only the first error sticks.
	first := c.err
	c.SetTerminalError(errors.New("other"))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Same(t, first, c.err)
}
