package wyrmtest

import (
	"github.com/gordian-engine/wyrm/wproto"
)

// StubMachine is a scriptable [wproto.SendMachine]
// for exercising the stream layer's outcome translation
// without a real protocol state machine.
//
// Each nil func field falls back to a permissive default:
// writes are fully accepted, state changes succeed,
// priority is zero, the peer has not stopped,
// and 0-RTT is accepted.
//
// Configure the func fields before the first operation;
// staged behavior belongs in a closure with its own state,
// not in reassigning fields mid-test.
type StubMachine struct {
	WriteFunc       func(id wproto.StreamID, p []byte) (int, error)
	WriteChunksFunc func(id wproto.StreamID, chunks [][]byte) (wproto.Written, error)

	FinishFunc func(id wproto.StreamID) error
	ResetFunc  func(id wproto.StreamID, code wproto.ErrorCode) error

	SetPriorityFunc func(id wproto.StreamID, priority int32) error
	PriorityFunc    func(id wproto.StreamID) (int32, error)

	StoppedFunc func(id wproto.StreamID) (wproto.ErrorCode, bool, error)

	ZeroRTTRejectedFunc func() bool
}

var _ wproto.SendMachine = (*StubMachine)(nil)

func (m *StubMachine) Write(id wproto.StreamID, p []byte) (int, error) {
	if m.WriteFunc != nil {
		return m.WriteFunc(id, p)
	}
	// Just act like we accepted the whole write.
	return len(p), nil
}

func (m *StubMachine) WriteChunks(id wproto.StreamID, chunks [][]byte) (wproto.Written, error) {
	if m.WriteChunksFunc != nil {
		return m.WriteChunksFunc(id, chunks)
	}

	var w wproto.Written
	for i := range chunks {
		chunks[i] = chunks[i][:0]
		w.Chunks++
	}
	return w, nil
}

func (m *StubMachine) Finish(id wproto.StreamID) error {
	if m.FinishFunc != nil {
		return m.FinishFunc(id)
	}
	return nil
}

func (m *StubMachine) Reset(id wproto.StreamID, code wproto.ErrorCode) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(id, code)
	}
	return nil
}

func (m *StubMachine) SetPriority(id wproto.StreamID, priority int32) error {
	if m.SetPriorityFunc != nil {
		return m.SetPriorityFunc(id, priority)
	}
	return nil
}

func (m *StubMachine) Priority(id wproto.StreamID) (int32, error) {
	if m.PriorityFunc != nil {
		return m.PriorityFunc(id)
	}
	return 0, nil
}

func (m *StubMachine) Stopped(id wproto.StreamID) (wproto.ErrorCode, bool, error) {
	if m.StoppedFunc != nil {
		return m.StoppedFunc(id)
	}
	return 0, false, nil
}

func (m *StubMachine) ZeroRTTRejected() bool {
	if m.ZeroRTTRejectedFunc != nil {
		return m.ZeroRTTRejectedFunc()
	}
	return false
}
