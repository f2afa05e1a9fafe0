package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the convention
// SPARKIE_SECTION_FIELD (e.g., SPARKIE_SERVER_LISTEN_ADDRESS) and always
// take precedence over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides overlays SPARKIE_* environment variables on cfg.
func applyEnvOverrides(cfg *Config) {
	overrideString("SPARKIE_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)

	overrideString("SPARKIE_UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	overrideString("SPARKIE_UPSTREAM_MODEL", &cfg.Upstream.Model)
	overrideDuration("SPARKIE_UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)

	overrideInt("SPARKIE_POOL_MAX_ATTEMPTS", &cfg.Pool.MaxAttempts)
	overrideDuration("SPARKIE_POOL_SOFT_COOLDOWN", &cfg.Pool.SoftCooldown)
	overrideDuration("SPARKIE_POOL_HARD_COOLDOWN", &cfg.Pool.HardCooldown)
	overrideDuration("SPARKIE_POOL_TRANSIENT_COOLDOWN", &cfg.Pool.TransientCooldown)
	overrideInt("SPARKIE_POOL_TRANSIENT_CEILING", &cfg.Pool.TransientCeiling)
	overrideInt("SPARKIE_POOL_HARD_LIMIT_CEILING", &cfg.Pool.HardLimitCeiling)
	overrideInt("SPARKIE_POOL_CAPACITY_FLOOR", &cfg.Pool.CapacityFloor)
	overrideString("SPARKIE_POOL_SWEEP_SCHEDULE", &cfg.Pool.SweepSchedule)

	overrideBool("SPARKIE_PROVISIONER_ENABLED", &cfg.Provisioner.Enabled)
	overrideString("SPARKIE_PROVISIONER_BASE_URL", &cfg.Provisioner.BaseURL)
	overrideDuration("SPARKIE_PROVISIONER_TIMEOUT", &cfg.Provisioner.Timeout)

	overrideBool("SPARKIE_STORAGE_ENABLED", &cfg.Storage.Enabled)
	overrideString("SPARKIE_STORAGE_PATH", &cfg.Storage.Path)

	overrideString("SPARKIE_CREDENTIALS_SEED_FILE", &cfg.Credentials.SeedFile)
	overrideBool("SPARKIE_CREDENTIALS_WATCH", &cfg.Credentials.Watch)

	overrideString("SPARKIE_TELEMETRY_LOG_LEVEL", &cfg.Telemetry.LogLevel)
	overrideString("SPARKIE_TELEMETRY_LOG_FORMAT", &cfg.Telemetry.LogFormat)
}

func overrideString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*target = parsed
		}
	}
}

func overrideDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*target = parsed
		}
	}
}
