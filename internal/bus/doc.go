// Package bus is the in-process event dispatcher standing in for the media
// host's event system. Publish is synchronous: handlers run in registration
// order on the caller's goroutine, and a handler panic never reaches the
// publisher.
package bus
