// Package services defines shared utilities consumed by the forwarding
// components and the daemon.
//
// Key responsibilities:
//   - Context helpers that stamp event types and correlation identifiers for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper so delivery failures can
//     be classified (timeout, transport, HTTP status) without string matching.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform.
package services
