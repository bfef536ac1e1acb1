// Package api defines the wire-format types of the daemon HTTP API and a
// client for it.
//
// The daemon converts internal models (stats counters, recent pushes,
// transfer-history records) into these DTOs. The CLI decodes the same types
// through Client, so both sides of the wire share one definition.
//
// DTOs use camelCase JSON tags, except recent-push records which keep the
// target_path key of the persisted log. Timestamps use RFC3339 with
// milliseconds.
package api
