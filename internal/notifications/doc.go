// Package notifications publishes site messages about probe results and
// failed pushes.
//
// The default implementation posts to the ntfy topic configured in
// config.toml and degrades to a no-op when no topic is set. Callers depend
// only on the Service interface.
package notifications
