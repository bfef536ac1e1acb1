// Package daemon coordinates the long-running cloudpush process.
//
// It wires configuration, the SQLite state store, the event bus and the
// current plugin into a single lifecycle with flock-based locking to prevent
// multiple instances. The plugin lives behind an atomic pointer: Reload
// builds a fresh one from re-read configuration and swaps it in, so an event
// already in flight finishes with the settings it started with.
//
// The HTTP API (gorilla/mux) is the host surface. The webhook at
// /api/events publishes envelopes on the bus and blocks until every handler
// returns, so a push with retries holds the request open. The server write
// timeout is sized from the retry settings for that reason.
package daemon
