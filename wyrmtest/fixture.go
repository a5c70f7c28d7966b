package wyrmtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/wyrm"
	"github.com/gordian-engine/wyrm/internal/wtest"
	"github.com/gordian-engine/wyrm/wdriver"
	"github.com/gordian-engine/wyrm/wmem"
	"github.com/gordian-engine/wyrm/wproto"
)

// Fixture assembles an in-memory connection:
// a [wmem.Machine], a running [wdriver.Driver],
// a [RecordingSink] capturing the wire,
// and channels for injecting transport events.
type Fixture struct {
	Machine *wmem.Machine
	Driver  *wdriver.Driver
	Conn    *wyrm.ConnState
	Sink    *RecordingSink

	CreditGrants chan wdriver.CreditGrant
	Acks         chan wdriver.Ack
	Losses       chan wdriver.Loss
	Stops        chan wdriver.Stop
	ConnErrors   chan error
}

// FixtureConfig adjusts the parts of the fixture
// that tests commonly need to vary.
type FixtureConfig struct {
	// Zero means [wmem.DefaultInitialStreamCredit].
	InitialStreamCredit int64

	// Zero means [wdriver.DefaultMaxPacketData].
	MaxPacketData int
}

// NewFixture returns a running fixture
// whose driver is stopped and awaited during test cleanup.
func NewFixture(t *testing.T, ctx context.Context, cfg FixtureConfig) *Fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(ctx)

	f := &Fixture{
		Machine: wmem.NewMachine(wmem.Config{
			InitialStreamCredit: cfg.InitialStreamCredit,
		}),
		Sink: NewRecordingSink(),

		CreditGrants: make(chan wdriver.CreditGrant, 8),
		Acks:         make(chan wdriver.Ack, 8),
		Losses:       make(chan wdriver.Loss, 8),
		Stops:        make(chan wdriver.Stop, 8),
		ConnErrors:   make(chan error, 1),
	}

	f.Driver = wdriver.New(ctx, wtest.NewLogger(t), wdriver.Config{
		Machine: f.Machine,
		Sink:    f.Sink,

		MaxPacketData: cfg.MaxPacketData,

		CreditGrants: f.CreditGrants,
		Acks:         f.Acks,
		Losses:       f.Losses,
		Stops:        f.Stops,
		ConnErrors:   f.ConnErrors,
	})
	f.Conn = f.Driver.Conn()

	t.Cleanup(func() {
		cancel()
		f.Driver.Wait()
	})

	return f
}

// OpenStream registers id with the machine
// and returns its send stream handle.
func (f *Fixture) OpenStream(t *testing.T, id wproto.StreamID) *wyrm.SendStream {
	t.Helper()

	require.NoError(t, f.Machine.CreateStream(id))
	return wyrm.NewSendStream(f.Conn, id, false)
}

// OpenEarlyStream is like [Fixture.OpenStream]
// but marks the stream as 0-RTT early data.
func (f *Fixture) OpenEarlyStream(t *testing.T, id wproto.StreamID) *wyrm.SendStream {
	t.Helper()

	require.NoError(t, f.Machine.CreateStream(id))
	return wyrm.NewSendStream(f.Conn, id, true)
}
