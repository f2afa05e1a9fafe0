package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sparkie-hq/relay/pkg/classify"
	"sparkie-hq/relay/pkg/cli"
	"sparkie-hq/relay/pkg/config"
	"sparkie-hq/relay/pkg/keypool"
	"sparkie-hq/relay/pkg/monitor"
	"sparkie-hq/relay/pkg/provision"
	"sparkie-hq/relay/pkg/router"
	"sparkie-hq/relay/pkg/server"
	"sparkie-hq/relay/pkg/storage"
	"sparkie-hq/relay/pkg/telemetry/logging"
	"sparkie-hq/relay/pkg/telemetry/metrics"
	"sparkie-hq/relay/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay server",
	Long: `Start the relay server with the specified configuration.

The server listens on the configured address and routes generation
requests through the credential pool, retrying rate-limited credentials
on healthy siblings and replenishing exhausted ones.

Examples:
  # Start with default config
  sparkie run

  # Start with custom config
  sparkie run --config /etc/sparkie/config.yaml

  # Override listen address
  sparkie run --listen 0.0.0.0:8080

  # Validate config without starting server
  sparkie run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// .env is optional; environment overrides still apply without it.
	_ = godotenv.Load()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.LogLevel = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Telemetry.LogLevel,
		Format: cfg.Telemetry.LogFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Sparkie v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	collector := metrics.NewCollector(metrics.Config{
		Namespace:       cfg.Telemetry.MetricsNamespace,
		EnableGoMetrics: cfg.Telemetry.GoMetrics,
	}, nil)

	pool := keypool.NewPool(keypool.PoolConfig{
		QuotaWindow: cfg.Pool.QuotaWindow,
		QuotaBucket: cfg.Pool.QuotaBucket,
	})

	snapStore, closeStore, err := setupStorage(cmd.Context(), cfg.Storage, pool)
	if err != nil {
		return err
	}
	defer closeStore()

	// Seed credentials from the operator-managed inventory file.
	if cfg.Credentials.SeedFile != "" {
		admitted, err := admitSeeds(pool, cfg.Credentials.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to load credential seeds: %w", err)
		}
		slog.Info("credential seeds loaded",
			"file", cfg.Credentials.SeedFile,
			"admitted", admitted,
		)
	}
	fmt.Printf("✓ Credential pool initialized (%d credentials)\n", pool.Len())

	breaker := keypool.NewBreaker(keypool.BreakerConfig{
		SoftCooldown:      cfg.Pool.SoftCooldown,
		HardCooldown:      cfg.Pool.HardCooldown,
		TransientCooldown: cfg.Pool.TransientCooldown,
		TransientCeiling:  cfg.Pool.TransientCeiling,
		HardLimitCeiling:  cfg.Pool.HardLimitCeiling,
	}, nil)

	var provisioner provision.Provisioner
	if cfg.Provisioner.Enabled {
		provisioner = provision.NewHTTPProvisioner(provision.Config{
			BaseURL: cfg.Provisioner.BaseURL,
			Timeout: cfg.Provisioner.Timeout,
		})
		fmt.Println("✓ Provisioning pipeline connected")
	} else {
		slog.Warn("provisioning disabled; exhausted credentials will not be replaced")
	}

	mon := monitor.New(pool, breaker, provisioner, monitor.Config{
		RecoveryHorizon:  cfg.Pool.RecoveryHorizon,
		CapacityFloor:    cfg.Pool.CapacityFloor,
		ProvisionTimeout: cfg.Provisioner.Timeout,
		SweepSchedule:    cfg.Pool.SweepSchedule,
	}, collector.Pool, snapStore)
	breaker.SetObserver(mon)
	pool.SetObserver(mon)

	if err := mon.Start(); err != nil {
		return fmt.Errorf("failed to start pool monitor: %w", err)
	}
	defer mon.Stop()

	client := upstream.NewGeminiClient(upstream.ClientConfig{
		BaseURL:      cfg.Upstream.BaseURL,
		DefaultModel: cfg.Upstream.Model,
		Timeout:      cfg.Upstream.Timeout,
	})

	selector := keypool.NewSelector(pool, breaker)
	rt := router.New(pool, selector, breaker, client, router.Config{
		MaxAttempts: cfg.Pool.MaxAttempts,
		ClassifyDefaults: classify.Defaults{
			SoftCooldown:      cfg.Pool.SoftCooldown,
			HardCooldown:      cfg.Pool.HardCooldown,
			TransientCooldown: cfg.Pool.TransientCooldown,
		},
	}, mon, collector.Router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Watch the seed file and admit new entries as they appear.
	if cfg.Credentials.SeedFile != "" && cfg.Credentials.Watch {
		watcher, err := config.NewSeedWatcher(cfg.Credentials.SeedFile, 0, logger)
		if err != nil {
			return fmt.Errorf("failed to create seed watcher: %w", err)
		}
		go func() {
			err := watcher.Watch(ctx, func() error {
				admitted, err := admitSeeds(pool, cfg.Credentials.SeedFile)
				if err != nil {
					return err
				}
				if admitted > 0 {
					slog.Info("new credential seeds admitted", "count", admitted)
				}
				return nil
			})
			if err != nil {
				slog.Error("seed watcher exited", "error", err)
			}
		}()
		fmt.Printf("✓ Watching seed file: %s\n", cfg.Credentials.SeedFile)
	}

	srv := server.NewServer(&cfg.Server, rt, pool, mon, collector.Handler(), logger)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	// Blocks until SIGINT/SIGTERM or context cancellation, then shuts
	// down gracefully.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// setupStorage opens the snapshot store and restores the last persisted pool
// state. The returned interface is a true nil when storage is disabled, so
// the monitor's store check skips snapshotting; wrapping a nil *SQLiteStore
// in the interface would defeat that check and panic the sweep.
func setupStorage(ctx context.Context, cfg config.StorageConfig, pool *keypool.Pool) (monitor.SnapshotStore, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	store, err := storage.NewSQLiteStore(storage.Config{Path: cfg.Path})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to load pool snapshot: %w", err)
	}
	if len(snap.Credentials) > 0 {
		pool.Restore(snap)
		slog.Info("pool restored from snapshot",
			"credentials", len(snap.Credentials),
		)
	}

	return store, func() { store.Close() }, nil
}

// admitSeeds loads the seed file and admits every entry the pool has not
// seen yet. Returns how many were admitted.
func admitSeeds(pool *keypool.Pool, path string) (int, error) {
	seeds, err := config.LoadSeeds(path)
	if err != nil {
		return 0, err
	}

	admitted := 0
	for _, seed := range seeds {
		if _, ok := pool.Get(seed.ID); ok {
			continue
		}
		if _, err := pool.Admit(seed.ID, seed.Key); err != nil {
			slog.Warn("seed admission failed", "credential_id", seed.ID, "error", err)
			continue
		}
		admitted++
	}
	return admitted, nil
}
