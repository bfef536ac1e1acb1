// Package main hosts the cloudpush CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground or in the
// background, probes the uploader, reads stats and recent pushes, sends events
// and transfer-history records to a running daemon, tails the daemon log, and
// scaffolds configuration. stats and recent fall back to the state database
// when no daemon answers.
package main
