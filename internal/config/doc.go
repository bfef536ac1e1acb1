// Package config loads, normalizes, and validates cloudpush configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CLOUDPUSH_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need, from the uploader endpoint and retry policy to the state
// directory and log rotation.
//
// Always obtain settings through this package so downstream code receives
// trimmed URLs, sanitized paths, and clear validation errors.
package config
