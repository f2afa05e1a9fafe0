package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for errors after defaults are applied.
func Validate(cfg *Config) error {
	var errs []string

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		errs = append(errs, fmt.Sprintf("server.listen_address %q is not host:port", cfg.Server.ListenAddress))
	}

	if !strings.HasPrefix(cfg.Upstream.BaseURL, "http://") && !strings.HasPrefix(cfg.Upstream.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("upstream.base_url %q must be an http(s) URL", cfg.Upstream.BaseURL))
	}
	if cfg.Upstream.Timeout <= 0 {
		errs = append(errs, "upstream.timeout must be positive")
	}

	if cfg.Pool.MaxAttempts < 1 {
		errs = append(errs, "pool.max_attempts must be at least 1")
	}
	if cfg.Pool.SoftCooldown <= 0 || cfg.Pool.HardCooldown <= 0 || cfg.Pool.TransientCooldown <= 0 {
		errs = append(errs, "pool cooldowns must be positive")
	}
	if cfg.Pool.HardCooldown < cfg.Pool.SoftCooldown {
		errs = append(errs, "pool.hard_cooldown must not be shorter than pool.soft_cooldown")
	}
	if cfg.Pool.TransientCeiling < 1 || cfg.Pool.HardLimitCeiling < 1 {
		errs = append(errs, "pool ceilings must be at least 1")
	}
	if cfg.Pool.QuotaBucket > cfg.Pool.QuotaWindow {
		errs = append(errs, "pool.quota_bucket must not exceed pool.quota_window")
	}
	if cfg.Pool.CapacityFloor < 0 {
		errs = append(errs, "pool.capacity_floor must not be negative")
	}

	if cfg.Provisioner.Enabled && cfg.Provisioner.BaseURL == "" {
		errs = append(errs, "provisioner.base_url is required when provisioner.enabled")
	}

	switch cfg.Telemetry.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("telemetry.log_level %q is not one of debug, info, warn, error", cfg.Telemetry.LogLevel))
	}
	switch cfg.Telemetry.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("telemetry.log_format %q is not one of json, text", cfg.Telemetry.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
