// Package cli provides shared helpers for the sparkie command line:
// typed command errors and output formatting for inspection commands.
package cli
