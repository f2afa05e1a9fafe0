package config

import "time"

// Config is the root configuration structure for the relay.
type Config struct {
	// Server contains the HTTP front door configuration.
	Server ServerConfig `yaml:"server"`

	// Upstream contains the generative API client configuration.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Pool contains the key pool, circuit breaker, and router tuning.
	Pool PoolConfig `yaml:"pool"`

	// Provisioner contains the credential provisioning pipeline client
	// configuration.
	Provisioner ProvisionerConfig `yaml:"provisioner"`

	// Storage contains snapshot persistence configuration.
	Storage StorageConfig `yaml:"storage"`

	// Credentials contains the credential seed file configuration.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP front door.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 120s (generation responses can be slow)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig contains configuration for the upstream API client.
type UpstreamConfig struct {
	// BaseURL is the API base URL.
	// Default: "https://generativelanguage.googleapis.com"
	BaseURL string `yaml:"base_url"`

	// Model is the default model when a request names none.
	// Default: "gemini-2.0-flash"
	Model string `yaml:"model"`

	// Timeout bounds one dispatch attempt; an attempt that exceeds it is
	// classified as a transient failure.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// PoolConfig contains the key pool and router tuning values.
type PoolConfig struct {
	// MaxAttempts is the attempt ceiling for one request.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// SoftCooldown is applied on a soft limit when the upstream recommends
	// no delay.
	// Default: 30s
	SoftCooldown time.Duration `yaml:"soft_cooldown"`

	// HardCooldown is applied on a hard limit when no quota reset time is
	// known.
	// Default: 1h
	HardCooldown time.Duration `yaml:"hard_cooldown"`

	// TransientCooldown is applied when a transient failure streak crosses
	// TransientCeiling.
	// Default: 5s
	TransientCooldown time.Duration `yaml:"transient_cooldown"`

	// TransientCeiling is the consecutive failure count at which repeated
	// transient errors start a cooldown.
	// Default: 3
	TransientCeiling int `yaml:"transient_ceiling"`

	// HardLimitCeiling is the consecutive failure count at which a hard
	// limit exhausts the credential instead of cooling it.
	// Default: 3
	HardLimitCeiling int `yaml:"hard_limit_ceiling"`

	// QuotaWindow is the duration of the per-credential limiting window.
	// Default: 1m
	QuotaWindow time.Duration `yaml:"quota_window"`

	// QuotaBucket is the limiting window's bucket granularity.
	// Default: 1s
	QuotaBucket time.Duration `yaml:"quota_bucket"`

	// RecoveryHorizon is how soon a Cooling credential must recover to
	// count toward usable capacity.
	// Default: 5m
	RecoveryHorizon time.Duration `yaml:"recovery_horizon"`

	// CapacityFloor is the usable capacity below which replenishment is
	// triggered.
	// Default: 1
	CapacityFloor int `yaml:"capacity_floor"`

	// SweepSchedule is the cron expression for the periodic pool sweep.
	// Default: "@every 1m"
	SweepSchedule string `yaml:"sweep_schedule"`
}

// ProvisionerConfig contains configuration for the provisioning pipeline
// client.
type ProvisionerConfig struct {
	// Enabled controls whether replenishment is wired at all.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// BaseURL is the pipeline's base URL.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds one provisioning call. Browser automation is slow.
	// Default: 3m
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig contains snapshot persistence configuration.
type StorageConfig struct {
	// Enabled controls whether snapshots are persisted.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	// Default: "./sparkie.db"
	Path string `yaml:"path"`
}

// CredentialsConfig contains the credential seed file configuration.
type CredentialsConfig struct {
	// SeedFile is a YAML file listing credentials to admit at startup.
	SeedFile string `yaml:"seed_file"`

	// Watch controls whether the seed file is watched for changes so new
	// credentials are admitted without a restart.
	// Default: false
	Watch bool `yaml:"watch"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	// LogLevel is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is the log output format ("json" or "text").
	// Default: "json"
	LogFormat string `yaml:"log_format"`

	// MetricsNamespace is the Prometheus metric name prefix.
	// Default: "sparkie"
	MetricsNamespace string `yaml:"metrics_namespace"`

	// GoMetrics controls whether Go runtime metrics are exported.
	// Default: false
	GoMetrics bool `yaml:"go_metrics"`
}
