// Package logging configures structured logging for the relay.
//
// It wraps log/slog with a redacting handler so credential secrets can
// never leak into log output, even if a caller passes one by mistake.
package logging
