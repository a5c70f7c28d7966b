package wtest

import (
	"testing"
	"time"
)

// ScaledTimeout is the base duration the channel helpers wait
// before declaring that a channel operation should have happened.
const ScaledTimeout = 5 * time.Second

// ReceiveSoon returns a value received from ch,
// or it fails t if no value is received within [ScaledTimeout].
func ReceiveSoon[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	timer := time.NewTimer(ScaledTimeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v
	case <-timer.C:
		t.Fatalf("did not receive on channel of type %T within %s", ch, ScaledTimeout)
		panic("unreachable")
	}
}

// SendSoon sends v on ch,
// or it fails t if the send does not complete within [ScaledTimeout].
func SendSoon[T any](t *testing.T, ch chan<- T, v T) {
	t.Helper()

	timer := time.NewTimer(ScaledTimeout)
	defer timer.Stop()

	select {
	case ch <- v:
	case <-timer.C:
		t.Fatalf("could not send on channel of type %T within %s", ch, ScaledTimeout)
	}
}

// IsSending asserts that ch has a value immediately available.
// Useful for channels that are closed to broadcast an event.
func IsSending[T any](t *testing.T, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
	default:
		t.Fatalf("expected channel of type %T to be sending", ch)
	}
}

// NotSending asserts that ch has no value immediately available.
func NotSending[T any](t *testing.T, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
		t.Fatalf("expected channel of type %T to not be sending", ch)
	default:
	}
}
