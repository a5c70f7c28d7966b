package wdriver

import (
	"context"
	"log/slog"

	"github.com/gordian-engine/wyrm"
	"github.com/gordian-engine/wyrm/internal/wtrace"
	"github.com/gordian-engine/wyrm/wmem"
	"github.com/gordian-engine/wyrm/wpubsub"
)

// DefaultMaxPacketData is the per-segment payload bound
// used when [Config.MaxPacketData] is zero.
const DefaultMaxPacketData = 1200

// PacketSink receives the encoded packets the driver produces.
type PacketSink interface {
	// SendPacket hands one encoded packet to the transport.
	//
	// A returned error is treated as terminal for the connection.
	SendPacket(p []byte) error
}

// Config is the configuration for [New].
type Config struct {
	// The protocol state machine to drive.
	Machine *wmem.Machine

	// Where encoded packets go.
	Sink PacketSink

	// Bound on new segments' payload size.
	// Zero means [DefaultMaxPacketData].
	MaxPacketData int

	// Inbound transport events.
	// Nil channels are allowed; those events then never arrive.
	CreditGrants <-chan CreditGrant
	Acks         <-chan Ack
	Losses       <-chan Loss
	Stops        <-chan Stop

	// Terminal connection errors from the transport.
	// The first received error stops the driver.
	ConnErrors <-chan error

	// May be nil, in which case no traces are emitted.
	TracerProvider wtrace.TracerProvider
}

// Driver runs the background work of one connection.
//
// Create an instance with [New];
// the main loop runs in its own goroutine until
// the context is canceled or the connection fails.
type Driver struct {
	log *slog.Logger

	tracer wtrace.Tracer

	machine *wmem.Machine
	conn    *wyrm.ConnState

	sink          PacketSink
	maxPacketData int

	// Coalescing advisory signal; see [*Driver.Wake].
	wakeCh chan struct{}

	creditGrants <-chan CreditGrant
	acks         <-chan Ack
	losses       <-chan Loss
	stops        <-chan Stop
	connErrors   <-chan error

	// Transmits is the feed of segments handed to the sink,
	// published in wire order.
	// Observers begin at this node and follow Next at their own pace.
	Transmits *wpubsub.Feed[wmem.Transmit]

	// Cursor for publishing; advances past Transmits' initial node.
	transmits *wpubsub.Feed[wmem.Transmit]

	mainLoopDone chan struct{}
}

// New returns a Driver whose main loop is already running.
//
// The driver creates the connection's [wyrm.ConnState] itself,
// because it is the state's [wyrm.Waker];
// retrieve it with [*Driver.Conn] to open streams.
func New(ctx context.Context, log *slog.Logger, cfg Config) *Driver {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = wtrace.NopTracerProvider()
	}

	maxData := cfg.MaxPacketData
	if maxData <= 0 {
		maxData = DefaultMaxPacketData
	}

	feed := wpubsub.NewFeed[wmem.Transmit]()

	d := &Driver{
		log: log,

		tracer: tp.Tracer("wdriver"),

		machine: cfg.Machine,

		sink:          cfg.Sink,
		maxPacketData: maxData,

		wakeCh: make(chan struct{}, 1),

		creditGrants: cfg.CreditGrants,
		acks:         cfg.Acks,
		losses:       cfg.Losses,
		stops:        cfg.Stops,
		connErrors:   cfg.ConnErrors,

		Transmits: feed,
		transmits: feed,

		mainLoopDone: make(chan struct{}),
	}

	d.conn = wyrm.NewConnState(cfg.Machine, d)

	go d.mainLoop(ctx)

	return d
}

// Conn returns the connection state shared by
// this connection's stream handles.
func (d *Driver) Conn() *wyrm.ConnState {
	return d.conn
}

// Wake signals the driver to re-examine the connection
// for sendable work.
//
// Wake never blocks and calls coalesce,
// so it is safe to call while holding the connection lock.
func (d *Driver) Wake() {
	select {
	case d.wakeCh <- struct{}{}:
	default:
		// A wake is already queued.
	}
}

var _ wyrm.Waker = (*Driver)(nil)

// Wait blocks until the driver's main loop has returned.
func (d *Driver) Wait() {
	<-d.mainLoopDone
}

func (d *Driver) mainLoop(ctx context.Context) {
	defer close(d.mainLoopDone)

	ctx, span := d.tracer.Start(ctx, "connection driver main loop")
	defer span.End()

	for {
		select {
		case <-ctx.Done():
			d.log.Info(
				"Stopping due to context cancellation",
				"cause", context.Cause(ctx),
			)
			return

		case <-d.wakeCh:
			if !d.flush(ctx) {
				return
			}

		case g := <-d.creditGrants:
			if d.machine.AddCredit(g.Stream, g.Bytes) {
				d.conn.WakeWriter(g.Stream)
			}

		case a := <-d.acks:
			if d.machine.HandleAck(a.Stream, a.Segment) {
				// The finished stream is now fully received;
				// its stop watcher can observe the terminal outcome.
				d.conn.WakeStopWatcher(a.Stream)
			}

		case l := <-d.losses:
			if d.machine.HandleLoss(l.Stream, l.Segment) {
				if !d.flush(ctx) {
					return
				}
			}

		case s := <-d.stops:
			if d.machine.HandleStopSending(s.Stream, s.Code) {
				d.conn.WakeStopWatcher(s.Stream)
				d.conn.WakeWriter(s.Stream)
			}

		case err := <-d.connErrors:
			d.log.Info(
				"Stopping due to terminal connection error",
				"err", err,
			)
			span.AddEvent("terminal connection error", wtrace.WithAttributes(
				wtrace.ErrorAttr(err),
			))
			d.conn.SetTerminalError(err)
			return
		}
	}
}

// flush drains every currently sendable segment to the sink.
// It reports false if the sink failed,
// which is terminal for the connection.
func (d *Driver) flush(ctx context.Context) bool {
	_, span := d.tracer.Start(ctx, "flush sendable segments")
	defer span.End()

	for {
		t, ok := d.machine.NextTransmit(d.maxPacketData)
		if !ok {
			return true
		}

		pkt := AppendFrame(nil, t)
		if err := d.sink.SendPacket(pkt); err != nil {
			d.log.Info(
				"Failed to send packet",
				"stream", t.Stream,
				"err", err,
			)
			wtrace.SpanError(span, err)
			d.conn.SetTerminalError(err)
			return false
		}

		span.AddEvent("sent segment", wtrace.WithAttributes(
			wtrace.StreamAttr(t.Stream),
		))

		d.transmits.Publish(t)
		d.transmits = d.transmits.Next
	}
}
