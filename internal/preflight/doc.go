// Package preflight provides readiness checks for the filesystem paths,
// state database, and uploader endpoint that cloudpush depends on.
//
// The daemon runs RunAll at startup and logs each failure. The CLI "doctor"
// command prints the same results as a table.
package preflight
