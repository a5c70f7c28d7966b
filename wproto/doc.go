// Package wproto declares the contracts between the stream layer
// in the root wyrm package and a per-connection protocol state machine.
//
// The state machine is the component that actually tracks
// flow control windows, buffered stream data, and retransmission.
// The wyrm package only calls the operations declared here
// and translates their outcomes for application code.
//
// The [wmem] package provides an in-memory reference implementation.
//
// [wmem]: https://pkg.go.dev/github.com/gordian-engine/wyrm/wmem
package wproto
