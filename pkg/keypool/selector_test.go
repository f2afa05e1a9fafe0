package keypool

import (
	"errors"
	"testing"
	"time"

	"sparkie-hq/relay/pkg/classify"
)

func newTestPool(t *testing.T, ids ...string) (*Pool, *Breaker, *Selector) {
	t.Helper()
	pool := NewPool(PoolConfig{QuotaWindow: time.Minute, QuotaBucket: time.Second})
	breaker := NewBreaker(testBreakerConfig(), nil)
	for _, id := range ids {
		if _, err := pool.Admit(id, "secret-"+id); err != nil {
			t.Fatalf("Admit(%q): %v", id, err)
		}
	}
	return pool, breaker, NewSelector(pool, breaker)
}

func TestSelector_EmptyPool(t *testing.T) {
	_, _, sel := newTestPool(t)
	if _, err := sel.Pick(time.Now(), nil); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Pick on empty pool = %v, want ErrPoolExhausted", err)
	}
}

func TestSelector_Deterministic(t *testing.T) {
	_, _, sel := newTestPool(t, "c", "a", "b")
	now := time.Now()

	// Identical pool snapshot, identical exclusion set: identical answer.
	first, err := sel.Pick(now, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		c, err := sel.Pick(now, nil)
		if err != nil {
			t.Fatal(err)
		}
		if c.ID() != first.ID() {
			t.Fatalf("Pick returned %q then %q", first.ID(), c.ID())
		}
	}
	// Untouched records tie on counters, so the id breaks the tie.
	if first.ID() != "a" {
		t.Errorf("Pick = %q, want %q", first.ID(), "a")
	}
}

func TestSelector_PrefersLeastLoaded(t *testing.T) {
	pool, breaker, sel := newTestPool(t, "a", "b")
	now := time.Now()

	// Load "a" with two in-window requests.
	a, _ := pool.Get("a")
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeSuccess}, now)
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeSuccess}, now)

	c, err := sel.Pick(now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != "b" {
		t.Errorf("Pick = %q, want the less loaded %q", c.ID(), "b")
	}
}

func TestSelector_LRUTieBreak(t *testing.T) {
	pool, breaker, sel := newTestPool(t, "a", "b")
	now := time.Now()

	// Equal window counts; "a" used more recently than "b".
	a, _ := pool.Get("a")
	b, _ := pool.Get("b")
	breaker.Apply(b, classify.Classification{Outcome: classify.OutcomeSuccess}, now.Add(-2*time.Second))
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeSuccess}, now.Add(-1*time.Second))

	c, err := sel.Pick(now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != "b" {
		t.Errorf("Pick = %q, want least recently used %q", c.ID(), "b")
	}
}

func TestSelector_ExclusionSet(t *testing.T) {
	_, _, sel := newTestPool(t, "a", "b")
	now := time.Now()

	c, err := sel.Pick(now, map[string]struct{}{"a": {}})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != "b" {
		t.Errorf("Pick = %q, want %q", c.ID(), "b")
	}

	if _, err := sel.Pick(now, map[string]struct{}{"a": {}, "b": {}}); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Pick with all excluded = %v, want ErrPoolExhausted", err)
	}
}

func TestSelector_SkipsCoolingAndTerminalStates(t *testing.T) {
	pool, breaker, sel := newTestPool(t, "a", "b", "c")
	now := time.Now()

	a, _ := pool.Get("a")
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeSoftLimit, Cooldown: time.Hour}, now)
	b, _ := pool.Get("b")
	breaker.Apply(b, classify.Classification{Outcome: classify.OutcomeRevoked}, now)

	c, err := sel.Pick(now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != "c" {
		t.Errorf("Pick = %q, want %q", c.ID(), "c")
	}

	// A credential in Cooling is never returned while now < cooldownUntil.
	if got := a.State(); got != StateCooling {
		t.Errorf("a.State = %v, want cooling", got)
	}
}

// Scenario: a credential in Cooling with an elapsed cooldown is selected and
// transitions back to Active before being returned.
func TestSelector_PromotesElapsedCooldown(t *testing.T) {
	pool, breaker, sel := newTestPool(t, "a")
	now := time.Now()

	a, _ := pool.Get("a")
	breaker.Apply(a, classify.Classification{Outcome: classify.OutcomeSoftLimit, Cooldown: time.Second}, now.Add(-time.Minute))

	c, err := sel.Pick(now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != "a" {
		t.Fatalf("Pick = %q, want %q", c.ID(), "a")
	}
	if got := c.State(); got != StateActive {
		t.Errorf("State after promotion = %v, want active", got)
	}
}
