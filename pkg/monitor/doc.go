// Package monitor implements the pool health monitor.
//
// The monitor observes credential state transitions from the circuit
// breaker, tracks the pool's usable capacity, and asks the external
// provisioning pipeline for fresh credentials when capacity drops below the
// configured floor or a credential leaves service. Replenishment runs
// asynchronously relative to request handling and is deduplicated so at
// most one request is outstanding per credential id.
//
// A periodic sweep (cron-scheduled) promotes credentials whose cooldown has
// elapsed, refreshes capacity gauges, and persists a pool snapshot when a
// store is configured.
package monitor
