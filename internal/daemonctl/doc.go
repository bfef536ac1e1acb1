// Package daemonctl starts and stops a background cloudpush daemon for the
// `start` and `stop` commands. Start launches `cloudpush run` in its own
// session and waits for /api/health; Stop signals the pid recorded by the
// running daemon.
package daemonctl
