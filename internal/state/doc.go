// Package state persists host-side plugin data in SQLite.
//
// The Store exposes a small JSON key/value table used for plugin data such as
// delivery statistics and the recent-push log, plus a transfer_history table
// the host fills as files are organized. UpdateJSON gives callers a
// transactional read-modify-write so concurrent updates never lose writes.
//
// Schema changes bump schemaVersion in schema.go; users delete the database to
// adopt the new schema.
package state
