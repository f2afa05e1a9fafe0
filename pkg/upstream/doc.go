// Package upstream implements the client for the upstream generative AI API.
//
// The package exposes a narrow Client interface: dispatch one generation
// request with one credential and report whatever came back as a RawOutcome.
// A RawOutcome is deliberately unopinionated - it carries the HTTP status,
// response body, retry hints, and any transport error, and leaves the
// interpretation of that evidence to the classify package. Dispatch never
// panics and never returns a Go error; every failure mode, including
// timeouts, is folded into the RawOutcome so the caller has exactly one
// code path.
package upstream
