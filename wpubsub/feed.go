package wpubsub

// Feed is a linked list of event-driven values.
// The list has a single writer and many readers.
// Readers can each consume the list at their own pace.
//
// If readers do not actively consume the list,
// the node they observe will never be garbage collected,
// which is a memory leak.
type Feed[T any] struct {
	Ready chan struct{}
	Next  *Feed[T]
	Val   T
}

// NewFeed returns an initialized pubsub feed.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{
		Ready: make(chan struct{}),
	}
}

// Publish assigns f's value and initializes f.Next.
// Then f.Ready is closed, notifying any observers that
// f.Val can now be safely read.
//
// If Publish is called twice for the same f, Publish panics.
func (f *Feed[T]) Publish(t T) {
	f.Val = t
	f.Next = NewFeed[T]()
	close(f.Ready)
}
