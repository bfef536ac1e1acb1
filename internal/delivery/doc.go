// Package delivery pushes payloads to the cloud uploader endpoint.
//
// Engine.Deliver makes at most MaxRetries+1 POST attempts with a fixed pause
// between them (avast/retry-go drives the loop), classifies the final outcome
// with the services error markers, and records exactly one stats outcome per
// call. A 200 response is success; any other status, a timeout, or a
// connection error is a failed attempt. Whether 4xx responses are retried is
// controlled by Settings.RetryClientErrors.
//
// Engine.Probe is a single-attempt connectivity check against {endpoint}/test.
package delivery
