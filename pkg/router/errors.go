package router

import (
	"errors"
	"fmt"

	"sparkie-hq/relay/pkg/classify"
)

// Common router errors that can be checked with errors.Is().
var (
	// ErrAllCredentialsUnavailable is returned when selection finds no
	// eligible credential for the request.
	ErrAllCredentialsUnavailable = errors.New("all credentials unavailable")

	// ErrRetriesExhausted is returned when the attempt ceiling is hit
	// without a success.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// AllCredentialsUnavailableError is returned when the pool has no eligible
// credential for this request, either immediately or after the credentials
// tried so far were excluded.
type AllCredentialsUnavailableError struct {
	// Attempts is the number of dispatch attempts made before giving up.
	Attempts int

	// PoolSize is the total number of credentials in the pool.
	PoolSize int
}

// Error implements the error interface.
func (e *AllCredentialsUnavailableError) Error() string {
	return fmt.Sprintf("all credentials unavailable (pool size %d, attempts made %d)",
		e.PoolSize, e.Attempts)
}

// Is implements error matching for errors.Is().
func (e *AllCredentialsUnavailableError) Is(target error) bool {
	return target == ErrAllCredentialsUnavailable
}

// RetriesExhaustedError is returned when the configured attempt ceiling is
// reached. It carries the last classified failure kind.
type RetriesExhaustedError struct {
	// Attempts is the number of dispatch attempts made.
	Attempts int

	// LastOutcome is the classification of the final failed attempt.
	LastOutcome classify.Outcome
}

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts (last outcome: %s)",
		e.Attempts, e.LastOutcome)
}

// Is implements error matching for errors.Is().
func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}
