// Package router orchestrates one generation request end-to-end: select a
// credential, dispatch upstream, classify the outcome, update the credential
// through its circuit breaker, and retry with a different credential on
// recoverable failure.
//
// Failures local to one credential (soft or hard limits, transient errors)
// are recovered here by retrying against a different credential; only
// pool-wide exhaustion surfaces to the caller, as one of the coarse typed
// errors in this package. The caller never sees per-credential detail - it
// talks to a single logical key pool.
package router
