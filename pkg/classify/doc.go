// Package classify maps raw upstream outcomes to a closed set of typed
// outcomes that drive the per-credential circuit breaker.
//
// Classification is pure: it inspects one upstream.RawOutcome and returns a
// Classification without touching any shared state. The upstream's
// loosely-typed error bodies never escape this package; everything downstream
// works with the enumerated Outcome. Anything the classifier cannot
// recognize is treated as a transient failure, never as a success, and is
// flagged ambiguous so the router can log it.
package classify
