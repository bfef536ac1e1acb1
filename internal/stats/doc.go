// Package stats keeps the delivery counters and the bounded recent-push log
// on top of the host key/value state.
package stats
