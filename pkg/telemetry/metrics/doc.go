// Package metrics provides Prometheus metrics for the key pool and the
// request router.
//
// All collectors are nil-safe: calling an update method on a nil receiver is
// a no-op, so components treat metrics as optional wiring and tests can pass
// nil.
package metrics
