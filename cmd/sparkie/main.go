// Sparkie is a rate-limit-aware request router for generative AI APIs.
//
// It fronts an upstream API with a pool of interchangeable credentials,
// classifying every upstream response into typed outcomes and moving
// credentials through a small lifecycle (active, cooling, exhausted,
// revoked) so that quota exhaustion on one key degrades into a retry on
// another instead of a client-visible failure.
//
// Usage:
//
//	# Start the relay with default configuration
//	sparkie run
//
//	# Start with a custom configuration file
//	sparkie run --config /path/to/config.yaml
//
//	# Inspect the persisted pool snapshot
//	sparkie pool status
//
//	# Show version information
//	sparkie version
package main

func main() {
	Execute()
}
