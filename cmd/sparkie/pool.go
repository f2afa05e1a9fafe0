package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sparkie-hq/relay/pkg/cli"
	"sparkie-hq/relay/pkg/config"
	"sparkie-hq/relay/pkg/keypool"
	"sparkie-hq/relay/pkg/server"
	"sparkie-hq/relay/pkg/storage"
)

var poolFlags struct {
	format string
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect the credential pool",
	Long: `Inspect the credential pool from its persisted snapshot.

Subcommands:
  status - Show every credential's state, usage, and cooldown

Examples:
  # Show pool status from the configured snapshot database
  sparkie pool status

  # Use a specific config file
  sparkie pool status --config /etc/sparkie/config.yaml`,
}

var poolStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential states from the last snapshot",
	Long: `Show every credential's state, failure count, and cooldown from the
last persisted pool snapshot. Secrets are always masked.`,
	RunE: poolStatus,
}

func init() {
	rootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolStatusCmd)

	poolStatusCmd.Flags().StringVar(&poolFlags.format, "format", "text", "output format: text, json")
}

func poolStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Storage.Enabled {
		return fmt.Errorf("storage is disabled; no snapshot to inspect")
	}

	store, err := storage.NewSQLiteStore(storage.Config{Path: cfg.Storage.Path})
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer store.Close()

	snap, err := store.LoadSnapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load pool snapshot: %w", err)
	}
	if len(snap.Credentials) == 0 {
		fmt.Println("No credentials in snapshot.")
		return nil
	}

	pool := keypool.NewPool(keypool.PoolConfig{
		QuotaWindow: cfg.Pool.QuotaWindow,
		QuotaBucket: cfg.Pool.QuotaBucket,
	})
	pool.Restore(snap)

	if cli.OutputFormat(poolFlags.format) == cli.FormatJSON {
		statuses := make([]server.KeyStatus, 0, pool.Len())
		for _, c := range pool.All() {
			statuses = append(statuses, server.KeyStatus{
				ID:                  c.ID(),
				MaskedKey:           c.MaskedSecret(),
				State:               c.State().String(),
				ConsecutiveFailures: c.ConsecutiveFailures(),
				TotalRequests:       c.TotalRequests(),
				CooldownUntil:       optionalTime(c.CooldownUntil()),
				LastSuccessAt:       optionalTime(c.LastSuccessAt()),
			})
		}
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, statuses)
	}

	if !snap.TakenAt.IsZero() {
		fmt.Printf("Snapshot taken: %s\n\n", snap.TakenAt.Format(time.RFC3339))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKEY\tSTATE\tFAILURES\tREQUESTS\tCOOLDOWN UNTIL\tLAST SUCCESS")
	for _, c := range pool.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			c.ID(),
			c.MaskedSecret(),
			c.State().String(),
			c.ConsecutiveFailures(),
			c.TotalRequests(),
			formatTime(c.CooldownUntil()),
			formatTime(c.LastSuccessAt()),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	states := pool.States()
	fmt.Printf("\n%d total: %d active, %d cooling, %d exhausted, %d revoked\n",
		pool.Len(),
		states[keypool.StateActive],
		states[keypool.StateCooling],
		states[keypool.StateExhausted],
		states[keypool.StateRevoked],
	)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
