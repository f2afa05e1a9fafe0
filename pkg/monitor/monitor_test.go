package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"sparkie-hq/relay/pkg/classify"
	"sparkie-hq/relay/pkg/keypool"
	"sparkie-hq/relay/pkg/provision"
)

func testBreakerConfig() keypool.BreakerConfig {
	return keypool.BreakerConfig{
		SoftCooldown:      30 * time.Second,
		HardCooldown:      time.Hour,
		TransientCooldown: 5 * time.Second,
		TransientCeiling:  3,
		HardLimitCeiling:  3,
	}
}

func newTestMonitor(t *testing.T, prov provision.Provisioner, cfg Config, ids ...string) (*Monitor, *keypool.Pool, *keypool.Breaker) {
	t.Helper()
	pool := keypool.NewPool(keypool.PoolConfig{QuotaWindow: time.Minute, QuotaBucket: time.Second})
	breaker := keypool.NewBreaker(testBreakerConfig(), nil)
	for _, id := range ids {
		if _, err := pool.Admit(id, "secret-"+id); err != nil {
			t.Fatalf("Admit(%q): %v", id, err)
		}
	}
	m := New(pool, breaker, prov, cfg, nil, nil)
	breaker.SetObserver(m)
	return m, pool, breaker
}

// A revocation observed from the breaker triggers exactly one provisioning
// call for that credential, even when further triggers arrive while the
// first is in flight.
func TestMonitor_ReplenishmentDeduplicated(t *testing.T) {
	prov := provision.NewMockProvisioner()
	prov.Hold()

	m, pool, breaker := newTestMonitor(t, prov, Config{CapacityFloor: 1}, "a")

	a, _ := pool.Get("a")
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeRevoked}, time.Now())

	// More triggers while the first call is still open must be dropped.
	m.NotifyUnavailable()
	m.NotifyUnavailable()

	prov.Release()
	m.Stop()

	if calls := prov.Calls(); len(calls) != 1 {
		t.Fatalf("provision calls = %v, want exactly one", calls)
	}
}

func TestMonitor_ReplaceOnProvisioningSuccess(t *testing.T) {
	prov := provision.NewMockProvisioner()
	prov.ScriptSecret("a", "AIzaReplacement01")

	_, pool, breaker := newTestMonitor(t, prov, Config{CapacityFloor: 1}, "a")

	// Drive the credential to Exhausted through repeated hard limits.
	a, _ := pool.Get("a")
	hard := classify.Classification{Outcome: classify.OutcomeHardLimit}
	for i := 0; i < testBreakerConfig().HardLimitCeiling+1; i++ {
		breaker.Apply(a, hard, time.Now())
	}
	if got := a.State(); got != keypool.StateExhausted {
		t.Fatalf("state = %v, want exhausted", got)
	}

	waitForState(t, pool, "a", keypool.StateActive)

	fresh, _ := pool.Get("a")
	if got := fresh.Secret(); got != "AIzaReplacement01" {
		t.Errorf("secret = %q, want the replacement", got)
	}
	if got := fresh.ConsecutiveFailures(); got != 0 {
		t.Errorf("failures = %d, want 0", got)
	}
}

func TestMonitor_RevokeOnProvisioningFailure(t *testing.T) {
	prov := provision.NewMockProvisioner()
	prov.ScriptFailure("a")

	m, pool, breaker := newTestMonitor(t, prov, Config{CapacityFloor: 1}, "a")

	a, _ := pool.Get("a")
	hard := classify.Classification{Outcome: classify.OutcomeHardLimit}
	for i := 0; i < testBreakerConfig().HardLimitCeiling+1; i++ {
		breaker.Apply(a, hard, time.Now())
	}

	waitForState(t, pool, "a", keypool.StateRevoked)

	// A failed credential is not retried on later capacity checks.
	m.NotifyUnavailable()
	m.Stop()
	if calls := prov.Calls(); len(calls) != 1 {
		t.Errorf("provision calls = %v, want exactly one", calls)
	}
}

// An administrative replacement (Admit over a revoked record) clears the
// replenishment block left by a permanent provisioning failure, so the fresh
// credential is replenished again if it later leaves service.
func TestMonitor_ReplacementClearsFailedBlock(t *testing.T) {
	prov := provision.NewMockProvisioner()
	prov.ScriptFailure("a")

	m, pool, breaker := newTestMonitor(t, prov, Config{CapacityFloor: 2}, "a", "b")
	pool.SetObserver(m)

	a, _ := pool.Get("a")
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeRevoked}, time.Now())
	m.Stop()

	// The failure is remembered: capacity checks skip the credential.
	m.NotifyUnavailable()
	if calls := prov.Calls(); len(calls) != 1 {
		t.Fatalf("provision calls = %v, want exactly one before replacement", calls)
	}

	// Operator swaps in a fresh secret over the revoked record.
	if _, err := pool.Admit("a", "fresh-secret-a"); err != nil {
		t.Fatalf("Admit over revoked: %v", err)
	}

	// The fresh credential leaving service must trigger provisioning again.
	if err := pool.MarkRevoked("a"); err != nil {
		t.Fatal(err)
	}
	m.NotifyUnavailable()
	m.Stop()

	if calls := prov.Calls(); len(calls) != 2 {
		t.Errorf("provision calls = %v, want a second attempt after replacement", calls)
	}
}

// A transition into Cooling can drop usable capacity below the floor without
// any credential fully leaving service; the transition itself re-checks the
// floor.
func TestMonitor_CoolingBelowFloorTriggersReplenishment(t *testing.T) {
	prov := provision.NewMockProvisioner()
	m, pool, breaker := newTestMonitor(t, prov,
		Config{CapacityFloor: 1, RecoveryHorizon: time.Minute}, "a", "b")

	// "b" leaves service administratively, so no transition fires for it.
	if err := pool.MarkRevoked("b"); err != nil {
		t.Fatal(err)
	}

	// "a" entering a cooldown past the recovery horizon drops usable
	// capacity to zero.
	a, _ := pool.Get("a")
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeSoftLimit, Cooldown: time.Hour}, time.Now())
	m.Stop()

	calls := prov.Calls()
	if len(calls) != 1 || calls[0] != "b" {
		t.Errorf("provision calls = %v, want [b]", calls)
	}
}

func TestMonitor_UsableCapacity(t *testing.T) {
	m, pool, breaker := newTestMonitor(t, nil, Config{RecoveryHorizon: 5 * time.Minute},
		"active", "soon", "late", "dead")
	now := time.Now()

	soon, _ := pool.Get("soon")
	breaker.Apply(soon, classify.Classification{Outcome: classify.OutcomeSoftLimit, Cooldown: time.Minute}, now)

	late, _ := pool.Get("late")
	breaker.Apply(late, classify.Classification{Outcome: classify.OutcomeSoftLimit, Cooldown: time.Hour}, now)

	dead, _ := pool.Get("dead")
	breaker.Apply(dead, classify.Classification{Outcome: classify.OutcomeRevoked}, now)

	// active counts, soon recovers within the horizon, late and dead do not.
	if got := m.UsableCapacity(now); got != 2 {
		t.Errorf("UsableCapacity = %d, want 2", got)
	}
}

func TestMonitor_CapacityFloorTriggersReplenishment(t *testing.T) {
	prov := provision.NewMockProvisioner()
	m, pool, _ := newTestMonitor(t, prov, Config{CapacityFloor: 2}, "a", "b")

	// Force one credential out of service directly (administrative path,
	// not via the breaker, so no transition-driven replenishment fires).
	if err := pool.MarkRevoked("a"); err != nil {
		t.Fatal(err)
	}

	// Capacity (1) is below the floor (2): the check must request
	// replenishment for the revoked record.
	m.CheckCapacity(time.Now())
	m.Stop()

	calls := prov.Calls()
	if len(calls) != 1 || calls[0] != "a" {
		t.Errorf("provision calls = %v, want [a]", calls)
	}
}

func TestMonitor_SweepPromotesAndSnapshots(t *testing.T) {
	store := &fakeStore{}
	pool := keypool.NewPool(keypool.PoolConfig{QuotaWindow: time.Minute, QuotaBucket: time.Second})
	breaker := keypool.NewBreaker(testBreakerConfig(), nil)
	pool.Admit("a", "secret-a")
	m := New(pool, breaker, nil, Config{CapacityFloor: 1}, nil, store)
	breaker.SetObserver(m)

	now := time.Now()
	a, _ := pool.Get("a")
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeSoftLimit, Cooldown: time.Second}, now.Add(-time.Minute))

	m.Sweep(context.Background(), now)

	if got := a.State(); got != keypool.StateActive {
		t.Errorf("state after sweep = %v, want active", got)
	}
	if store.saves() != 1 {
		t.Errorf("snapshot saves = %d, want 1", store.saves())
	}
}

// fakeStore counts snapshot saves.
type fakeStore struct {
	mu    sync.Mutex
	count int
}

func (f *fakeStore) SaveSnapshot(_ context.Context, _ *keypool.PoolSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return nil
}

func (f *fakeStore) saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// waitForState polls until the credential reaches the wanted state or the
// deadline passes. Replenishment runs on its own goroutine.
func waitForState(t *testing.T, pool *keypool.Pool, id string, want keypool.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, ok := pool.Get(id); ok && c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	c, _ := pool.Get(id)
	t.Fatalf("credential %q state = %v, want %v", id, c.State(), want)
}
