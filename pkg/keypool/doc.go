// Package keypool implements the credential pool: per-credential health
// records, the circuit breaker state machine that governs their lifecycle,
// and the selection policy that picks a credential for each request.
//
// # Concurrency
//
// The Pool guards membership with a read-write mutex; each Credential guards
// its own state with a per-record mutex scoped narrowly to state reads and
// the read-classify-mutate step after a dispatch. No lock is ever held
// across an upstream network call, so a slow call on one credential never
// blocks selection or mutation of others. Quota-window counters are
// internally synchronized and safe under concurrent increment.
//
// # Lifecycle
//
//	Active ──SoftLimit/HardLimit──▶ Cooling ──cooldown elapsed──▶ Active
//	Active ──repeated HardLimit──▶ Exhausted ──replenishment──▶ Active
//	any    ──Revoked classification──▶ Revoked (terminal)
//
// Cooling is time-bounded and self-healing; Exhausted needs external
// replenishment; Revoked needs administrative replacement. The split lets
// the pool health monitor target exactly the credentials that need
// provisioning action.
package keypool
