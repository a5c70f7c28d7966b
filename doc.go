// Package wyrm implements the outbound half of multiplexed,
// reliable byte streams layered over a QUIC-style connection.
//
// Application code holds a [SendStream] per stream,
// supporting buffered writes, explicit completion with [SendStream.Finish],
// abrupt abandonment with [SendStream.Reset], priority hints,
// and notification of peer-initiated stops with [SendStream.Stopped].
//
// All stream handles of one connection coordinate through a shared
// [ConnState], which guards the connection's protocol state machine
// behind a single lock.
// Operations that flow control cannot yet satisfy suspend
// until the connection driver reports progress;
// the lock is never held while suspended.
//
// The wproto package declares the state machine contracts,
// and the wmem and wdriver packages provide reference implementations
// of the state machine and of the connection driver.
package wyrm
