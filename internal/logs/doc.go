// Package logs reads the daemon log file for `cloudpush logs`.
//
// LastLines returns the tail of the file with bounded memory, and Follow polls
// from a byte offset until the context ends, restarting from the top when
// lumberjack rotates the file underneath it.
package logs
