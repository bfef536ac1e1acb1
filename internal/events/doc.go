// Package events models the host events cloudpush consumes.
//
// An Envelope carries an event type tag and a raw data object. Organize
// notifications decode into Notification, whose nested fields are all
// optional: absent values are nil pointers or nil slices, never zero values
// that could be mistaken for real data. Year and identifier fields accept
// either JSON strings or numbers since hosts disagree on their encoding.
package events
