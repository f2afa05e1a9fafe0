// Package server provides the HTTP API surface of the relay.
//
// It ties together the request router, the credential pool, and the pool
// health monitor behind a small set of endpoints, and manages server
// lifecycle: startup, OS signal handling, and graceful shutdown.
//
// # Routes
//
//   - POST /v1/generate - route a generation request through the pool
//   - POST /v1/keys - admit a new credential
//   - GET /v1/keys - list credentials (secrets masked)
//   - GET /health - pool census and usable capacity
//   - GET /metrics - Prometheus metrics
//
// # Middleware Chain
//
// Requests pass through (innermost to outermost):
//  1. RequestID: attaches a unique request ID for tracing
//  2. Logging: logs request/response details
//  3. Recovery: recovers from panics and returns 500
package server
