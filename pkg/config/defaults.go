package config

import "time"

// ApplyDefaults fills in default values for any unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Upstream.Model == "" {
		cfg.Upstream.Model = "gemini-2.0-flash"
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}

	if cfg.Pool.MaxAttempts == 0 {
		cfg.Pool.MaxAttempts = 3
	}
	if cfg.Pool.SoftCooldown == 0 {
		cfg.Pool.SoftCooldown = 30 * time.Second
	}
	if cfg.Pool.HardCooldown == 0 {
		cfg.Pool.HardCooldown = time.Hour
	}
	if cfg.Pool.TransientCooldown == 0 {
		cfg.Pool.TransientCooldown = 5 * time.Second
	}
	if cfg.Pool.TransientCeiling == 0 {
		cfg.Pool.TransientCeiling = 3
	}
	if cfg.Pool.HardLimitCeiling == 0 {
		cfg.Pool.HardLimitCeiling = 3
	}
	if cfg.Pool.QuotaWindow == 0 {
		cfg.Pool.QuotaWindow = time.Minute
	}
	if cfg.Pool.QuotaBucket == 0 {
		cfg.Pool.QuotaBucket = time.Second
	}
	if cfg.Pool.RecoveryHorizon == 0 {
		cfg.Pool.RecoveryHorizon = 5 * time.Minute
	}
	if cfg.Pool.CapacityFloor == 0 {
		cfg.Pool.CapacityFloor = 1
	}
	if cfg.Pool.SweepSchedule == "" {
		cfg.Pool.SweepSchedule = "@every 1m"
	}

	if cfg.Provisioner.Timeout == 0 {
		cfg.Provisioner.Timeout = 3 * time.Minute
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./sparkie.db"
	}

	if cfg.Telemetry.LogLevel == "" {
		cfg.Telemetry.LogLevel = "info"
	}
	if cfg.Telemetry.LogFormat == "" {
		cfg.Telemetry.LogFormat = "json"
	}
	if cfg.Telemetry.MetricsNamespace == "" {
		cfg.Telemetry.MetricsNamespace = "sparkie"
	}
}
