// Package storage persists pool snapshots so credential state survives
// restarts. Persistence is optional; the pool is fully functional in-memory
// and the monitor simply skips saving when no store is configured.
package storage
