// Package config defines the YAML configuration for the relay, with
// defaults, validation, and environment variable overrides.
//
// Loading sequence: parse the YAML file, apply defaults, apply
// SPARKIE_SECTION_FIELD environment overrides, validate. Every tuning value
// of the pool (cooldown windows, failure ceilings, attempt limits) lives
// here rather than in code.
package config
