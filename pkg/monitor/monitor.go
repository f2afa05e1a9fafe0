package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sparkie-hq/relay/pkg/keypool"
	"sparkie-hq/relay/pkg/provision"
	"sparkie-hq/relay/pkg/telemetry/metrics"
)

// Config carries the monitor's tuning values.
type Config struct {
	// RecoveryHorizon is how far ahead a Cooling credential's recovery may
	// lie for it to still count toward usable capacity.
	RecoveryHorizon time.Duration

	// CapacityFloor is the usable capacity below which replenishment is
	// triggered for every out-of-service credential.
	CapacityFloor int

	// ProvisionTimeout bounds one replenishment call.
	ProvisionTimeout time.Duration

	// SweepSchedule is the cron expression for the periodic sweep. Empty
	// disables the scheduler.
	SweepSchedule string
}

// SnapshotStore persists pool snapshots. The monitor saves one on every
// sweep when a store is configured.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *keypool.PoolSnapshot) error
}

// Monitor aggregates credential states and drives replenishment. It
// implements keypool.TransitionObserver and router.UnavailableNotifier.
type Monitor struct {
	pool        *keypool.Pool
	breaker     *keypool.Breaker
	provisioner provision.Provisioner
	config      Config
	metrics     *metrics.PoolMetrics
	store       SnapshotStore
	logger      *slog.Logger

	cron *cron.Cron

	mu       sync.Mutex
	inflight map[string]struct{}
	failed   map[string]struct{}
	wg       sync.WaitGroup
}

// New creates a monitor. provisioner may be nil (replenishment disabled);
// poolMetrics and store may be nil.
func New(pool *keypool.Pool, breaker *keypool.Breaker, provisioner provision.Provisioner,
	cfg Config, poolMetrics *metrics.PoolMetrics, store SnapshotStore) *Monitor {

	if cfg.RecoveryHorizon == 0 {
		cfg.RecoveryHorizon = 5 * time.Minute
	}
	if cfg.ProvisionTimeout == 0 {
		cfg.ProvisionTimeout = 3 * time.Minute
	}

	return &Monitor{
		pool:        pool,
		breaker:     breaker,
		provisioner: provisioner,
		config:      cfg,
		metrics:     poolMetrics,
		store:       store,
		logger:      slog.Default().With("component", "monitor"),
		inflight:    make(map[string]struct{}),
		failed:      make(map[string]struct{}),
	}
}

// ObserveTransition implements keypool.TransitionObserver. Called by the
// breaker after every real state change, outside any record lock.
func (m *Monitor) ObserveTransition(t keypool.Transition) {
	m.metrics.RecordTransition(t.From.String(), t.To.String())

	switch t.To {
	case keypool.StateActive:
		// The credential is back in service; a past provisioning failure no
		// longer applies.
		m.mu.Lock()
		delete(m.failed, t.ID)
		m.mu.Unlock()

	case keypool.StateCooling:
		// A cooldown reaching past the recovery horizon can drop usable
		// capacity below the floor without taking the credential fully out
		// of service.
		m.CheckCapacity(time.Now())
		return

	case keypool.StateExhausted, keypool.StateRevoked:
		m.logger.Warn("credential left service",
			"credential", t.ID,
			"from", t.From.String(),
			"to", t.To.String(),
			"outcome", t.Outcome.String(),
		)
		m.requestReplenishment(t.ID)
	}

	m.refreshGauges(time.Now())
}

// NotifyUnavailable implements the router's notifier: a request found no
// eligible credential. Re-check capacity; the check is cheap and the
// replenishments it may trigger run on their own goroutines.
func (m *Monitor) NotifyUnavailable() {
	m.CheckCapacity(time.Now())
}

// UsableCapacity counts Active credentials plus Cooling credentials expected
// to recover within the configured horizon.
func (m *Monitor) UsableCapacity(now time.Time) int {
	horizon := now.Add(m.config.RecoveryHorizon)

	capacity := 0
	for _, c := range m.pool.All() {
		switch c.State() {
		case keypool.StateActive:
			capacity++
		case keypool.StateCooling:
			if !c.CooldownUntil().After(horizon) {
				capacity++
			}
		}
	}
	return capacity
}

// CheckCapacity recomputes usable capacity and, when it sits below the
// floor, requests replenishment for every out-of-service credential.
func (m *Monitor) CheckCapacity(now time.Time) {
	capacity := m.refreshGauges(now)
	if capacity >= m.config.CapacityFloor {
		return
	}

	m.logger.Warn("pool capacity below floor",
		"usable", capacity,
		"floor", m.config.CapacityFloor,
	)

	for _, c := range m.pool.All() {
		if state := c.State(); state == keypool.StateExhausted || state == keypool.StateRevoked {
			m.requestReplenishment(c.ID())
		}
	}
}

// requestReplenishment asks the pipeline for a fresh credential, unless one
// request is already outstanding for this id or a prior one failed
// permanently.
func (m *Monitor) requestReplenishment(id string) {
	if m.provisioner == nil {
		return
	}

	m.mu.Lock()
	if _, busy := m.inflight[id]; busy {
		m.mu.Unlock()
		return
	}
	if _, dead := m.failed[id]; dead {
		m.mu.Unlock()
		return
	}
	m.inflight[id] = struct{}{}
	m.mu.Unlock()

	m.metrics.RecordReplenishment("requested")
	m.logger.Info("replenishment requested", "credential", id)

	m.wg.Add(1)
	go m.runReplenishment(id)
}

// runReplenishment performs one provisioning call and applies the result.
func (m *Monitor) runReplenishment(id string) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.inflight, id)
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ProvisionTimeout)
	defer cancel()

	secret, err := m.provisioner.Provision(ctx, id)
	if err != nil {
		m.mu.Lock()
		m.failed[id] = struct{}{}
		m.mu.Unlock()

		if revokeErr := m.pool.MarkRevoked(id); revokeErr != nil {
			m.logger.Error("failed to revoke credential after provisioning failure",
				"credential", id, "error", revokeErr)
		}
		m.metrics.RecordReplenishment("failed")
		// Operator-visible alert: this credential needs manual replacement.
		m.logger.Error("replenishment failed, credential revoked",
			"credential", id,
			"error", err,
		)
		m.refreshGauges(time.Now())
		return
	}

	if _, err := m.pool.Replace(id, secret); err != nil {
		m.metrics.RecordReplenishment("failed")
		m.logger.Error("failed to install replenished credential",
			"credential", id, "error", err)
		return
	}

	m.metrics.RecordReplenishment("succeeded")
	m.logger.Info("credential replenished", "credential", id)
	m.refreshGauges(time.Now())
}

// Sweep promotes credentials with elapsed cooldowns, refreshes gauges,
// persists a snapshot when a store is configured, and re-checks capacity.
func (m *Monitor) Sweep(ctx context.Context, now time.Time) {
	for _, c := range m.pool.All() {
		if c.State() == keypool.StateCooling {
			m.breaker.Promote(c, now)
		}
	}

	if m.store != nil {
		if err := m.store.SaveSnapshot(ctx, m.pool.Snapshot()); err != nil {
			m.logger.Error("snapshot save failed", "error", err)
		}
	}

	m.CheckCapacity(now)
}

// Start launches the cron-scheduled sweep. A no-op when no schedule is
// configured.
func (m *Monitor) Start() error {
	if m.config.SweepSchedule == "" {
		m.logger.Info("sweep schedule not configured, scheduler disabled")
		return nil
	}

	m.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{m.logger})))
	_, err := m.cron.AddFunc(m.config.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.Sweep(ctx, time.Now())
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", m.config.SweepSchedule, err)
	}

	m.cron.Start()
	m.logger.Info("sweep scheduler started", "schedule", m.config.SweepSchedule)
	return nil
}

// Stop halts the scheduler and waits for in-flight replenishments.
func (m *Monitor) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
	m.wg.Wait()
}

// cronLogger adapts slog to the scheduler's logger so a panicking sweep is
// logged rather than silently swallowed.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// refreshGauges updates the per-state and capacity gauges and returns the
// usable capacity.
func (m *Monitor) refreshGauges(now time.Time) int {
	census := m.pool.States()
	for _, state := range []keypool.State{
		keypool.StateActive, keypool.StateCooling, keypool.StateExhausted, keypool.StateRevoked,
	} {
		m.metrics.SetCredentials(state.String(), census[state])
	}

	capacity := m.UsableCapacity(now)
	m.metrics.SetUsableCapacity(capacity)
	return capacity
}
