// Package wdriver provides a reference connection driver
// for the wyrm stream layer.
//
// The driver owns the background work of one connection:
// it drains sendable segments from a [wmem.Machine],
// encodes them as frames, and hands them to a [PacketSink];
// it applies inbound transport events
// (credit grants, acknowledgments, losses, peer stops,
// terminal connection errors) to the machine;
// and it wakes suspended stream operations
// through the connection's [wyrm.ConnState].
//
// Integrations that bring their own driver only need to satisfy
// the [wyrm.Waker] contract and call the machine
// and ConnState methods this package calls.
//
// [wmem.Machine]: https://pkg.go.dev/github.com/gordian-engine/wyrm/wmem#Machine
// [wyrm.ConnState]: https://pkg.go.dev/github.com/gordian-engine/wyrm#ConnState
// [wyrm.Waker]: https://pkg.go.dev/github.com/gordian-engine/wyrm#Waker
package wdriver
