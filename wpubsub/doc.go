// Package wpubsub contains types for in-application
// publish-subscribe patterns.
//
// The [Feed] type specifically simplifies the pattern of
// a single publisher with many concurrent subscribers,
// who all need to observe the same sequence of values.
// The connection driver uses it to publish transmit activity
// without a dedicated goroutine per observer.
package wpubsub
