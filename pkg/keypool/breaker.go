package keypool

import (
	"time"

	"sparkie-hq/relay/pkg/classify"
)

// BreakerConfig carries the tuning values of the per-credential circuit
// breaker. All values are operational tuning, surfaced through the config
// file rather than hard-coded.
type BreakerConfig struct {
	// SoftCooldown is the cooldown applied on a soft limit when the upstream
	// recommends none.
	SoftCooldown time.Duration

	// HardCooldown is the cooldown applied on a hard limit when no quota
	// reset time is known.
	HardCooldown time.Duration

	// TransientCooldown is the cooldown applied when a transient failure
	// streak crosses TransientCeiling.
	TransientCooldown time.Duration

	// TransientCeiling is the consecutive failure count at which repeated
	// transient errors are treated as a de facto soft limit.
	TransientCeiling int

	// HardLimitCeiling is the consecutive failure count at which a hard
	// limit sends the credential to Exhausted instead of Cooling.
	HardLimitCeiling int
}

// Transition records one state change of a credential.
type Transition struct {
	// ID is the credential identifier.
	ID string

	// From and To are the states before and after the change.
	From State
	To   State

	// Outcome is the classified outcome that caused the change, when the
	// change was outcome-driven. Cooldown promotion and administrative
	// replacement report OutcomeSuccess.
	Outcome classify.Outcome

	// At is when the transition was applied.
	At time.Time
}

// Changed reports whether the transition altered the credential's state.
func (t Transition) Changed() bool { return t.From != t.To }

// TransitionObserver receives credential state transitions. The pool health
// monitor registers here. Observers are called outside any record lock and
// must not block for long.
type TransitionObserver interface {
	ObserveTransition(t Transition)
}

// Breaker applies classified outcomes to credential records, driving the
// per-credential state machine. It holds no per-credential state of its own;
// all state lives in the records.
type Breaker struct {
	config   BreakerConfig
	observer TransitionObserver
}

// NewBreaker creates a breaker with the given tuning. The observer may be
// nil.
func NewBreaker(cfg BreakerConfig, observer TransitionObserver) *Breaker {
	return &Breaker{config: cfg, observer: observer}
}

// SetObserver registers the transition observer. Not safe to call once
// requests are flowing; wire the observer during startup.
func (b *Breaker) SetObserver(observer TransitionObserver) {
	b.observer = observer
}

// Apply records one dispatch outcome on the credential and applies the
// resulting state transition atomically with respect to other requests.
//
// Usage bookkeeping (lastUsedAt, quota window, total count) happens
// regardless of outcome; the credential's true observed behavior did occur
// even if the request that caused it was later abandoned.
func (b *Breaker) Apply(c *Credential, cl classify.Classification, now time.Time) Transition {
	c.quota.Add(now, 1)

	c.mu.Lock()

	c.lastUsedAt = now
	c.totalRequests++

	from := c.state

	switch cl.Outcome {
	case classify.OutcomeSuccess:
		c.consecutiveFailures = 0
		c.lastSuccessAt = now
		if c.state == StateActive || c.state == StateCooling {
			c.state = StateActive
			c.cooldownUntil = time.Time{}
		}

	case classify.OutcomeSoftLimit:
		c.consecutiveFailures++
		if c.state != StateRevoked && c.state != StateExhausted {
			c.state = StateCooling
			c.cooldownUntil = now.Add(pickCooldown(cl.Cooldown, b.config.SoftCooldown))
		}

	case classify.OutcomeHardLimit:
		c.consecutiveFailures++
		if c.state != StateRevoked {
			if c.consecutiveFailures > b.config.HardLimitCeiling {
				c.state = StateExhausted
				c.cooldownUntil = time.Time{}
			} else {
				c.state = StateCooling
				c.cooldownUntil = now.Add(pickCooldown(cl.Cooldown, b.config.HardCooldown))
			}
		}

	case classify.OutcomeTransient:
		c.consecutiveFailures++
		if c.state == StateActive && c.consecutiveFailures > b.config.TransientCeiling {
			c.state = StateCooling
			c.cooldownUntil = now.Add(pickCooldown(cl.Cooldown, b.config.TransientCooldown))
		}

	case classify.OutcomeRevoked:
		c.consecutiveFailures++
		c.state = StateRevoked
		c.cooldownUntil = time.Time{}
	}

	transition := Transition{ID: c.id, From: from, To: c.state, Outcome: cl.Outcome, At: now}
	c.mu.Unlock()

	b.notify(transition)
	return transition
}

// Promote moves a Cooling credential whose cooldown has elapsed back to
// Active. It reports whether the promotion happened. Called by the selector
// on selection attempts and by the monitor's periodic sweep.
func (b *Breaker) Promote(c *Credential, now time.Time) (Transition, bool) {
	c.mu.Lock()
	if c.state != StateCooling || now.Before(c.cooldownUntil) {
		c.mu.Unlock()
		return Transition{}, false
	}
	c.state = StateActive
	c.cooldownUntil = time.Time{}
	transition := Transition{ID: c.id, From: StateCooling, To: StateActive, Outcome: classify.OutcomeSuccess, At: now}
	c.mu.Unlock()

	b.notify(transition)
	return transition, true
}

func (b *Breaker) notify(t Transition) {
	if b.observer != nil && t.Changed() {
		b.observer.ObserveTransition(t)
	}
}

// pickCooldown prefers the classifier's recommendation over the configured
// fallback.
func pickCooldown(recommended, fallback time.Duration) time.Duration {
	if recommended > 0 {
		return recommended
	}
	return fallback
}
