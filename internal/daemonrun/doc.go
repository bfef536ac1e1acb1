// Package daemonrun hosts the foreground daemon process: logger setup, pid
// file, state store, signal handling and the daemon lifecycle. SIGHUP
// reloads configuration; SIGINT and SIGTERM shut down.
package daemonrun
