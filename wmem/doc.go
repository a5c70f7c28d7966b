// Package wmem provides an in-memory reference implementation
// of the [wproto.SendMachine] contracts.
//
// The machine does pure bookkeeping:
// per-stream flow control credit, buffered segments awaiting transmit,
// acknowledgment tracking, and retransmission queueing.
// It implements no congestion control or loss detection of its own;
// the connection driver feeds it credit grants, acks, and losses.
//
// [wproto.SendMachine]: https://pkg.go.dev/github.com/gordian-engine/wyrm/wproto#SendMachine
package wmem
