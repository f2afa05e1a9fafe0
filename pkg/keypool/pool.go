package keypool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sparkie-hq/relay/pkg/classify"
)

// Common pool errors that can be checked with errors.Is().
var (
	// ErrPoolExhausted is returned by selection when no credential is
	// eligible right now.
	ErrPoolExhausted = errors.New("no eligible credential in pool")

	// ErrDuplicateID is returned when admitting a credential whose id is
	// already present and not revoked.
	ErrDuplicateID = errors.New("credential id already in pool")

	// ErrNotFound is returned when an operation names an unknown credential.
	ErrNotFound = errors.New("credential not found")
)

// PoolConfig carries the per-credential quota window shape.
type PoolConfig struct {
	// QuotaWindow is the duration of the limiting window.
	QuotaWindow time.Duration

	// QuotaBucket is the window's bucket granularity.
	QuotaBucket time.Duration
}

// Pool is the collection of credential records, keyed by id. Membership is
// mutable: admission inserts, revocation soft-deletes (the record stays,
// marked Revoked, so its history remains visible to the monitor and stats).
type Pool struct {
	mu       sync.RWMutex
	records  map[string]*Credential
	config   PoolConfig
	observer TransitionObserver
}

// NewPool creates an empty pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.QuotaWindow == 0 {
		cfg.QuotaWindow = time.Minute
	}
	if cfg.QuotaBucket == 0 {
		cfg.QuotaBucket = time.Second
	}
	return &Pool{
		records: make(map[string]*Credential),
		config:  cfg,
	}
}

// SetObserver registers an observer for administrative transitions (Admit
// over a revoked record, Replace). Not safe to call once requests are
// flowing; wire the observer during startup.
func (p *Pool) SetObserver(observer TransitionObserver) {
	p.observer = observer
}

// notifyReplacement reports the Revoked/Exhausted -> Active transition that
// an administrative replacement performs. Called outside the pool lock.
func (p *Pool) notifyReplacement(id string, from State) {
	if p.observer == nil {
		return
	}
	p.observer.ObserveTransition(Transition{
		ID:      id,
		From:    from,
		To:      StateActive,
		Outcome: classify.OutcomeSuccess,
		At:      time.Now(),
	})
}

// Admit inserts a new Active credential. The only precondition is a unique
// id; admitting over a Revoked record is the administrative replacement path
// and resets the record with the new secret and zeroed counters.
func (p *Pool) Admit(id, secret string) (*Credential, error) {
	if id == "" || secret == "" {
		return nil, fmt.Errorf("admit: id and secret must be non-empty")
	}

	p.mu.Lock()
	if existing, ok := p.records[id]; ok {
		if existing.State() != StateRevoked {
			p.mu.Unlock()
			return nil, fmt.Errorf("admit %q: %w", id, ErrDuplicateID)
		}
		fresh := NewCredential(id, secret, p.config.QuotaWindow, p.config.QuotaBucket)
		p.records[id] = fresh
		p.mu.Unlock()
		p.notifyReplacement(id, StateRevoked)
		return fresh, nil
	}

	c := NewCredential(id, secret, p.config.QuotaWindow, p.config.QuotaBucket)
	p.records[id] = c
	p.mu.Unlock()
	return c, nil
}

// Replace swaps in a fresh secret for an existing id, returning the record
// to Active with zeroed counters and a fresh quota window. Used when
// replenishment completes.
func (p *Pool) Replace(id, secret string) (*Credential, error) {
	p.mu.Lock()
	old, ok := p.records[id]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("replace %q: %w", id, ErrNotFound)
	}
	from := old.State()
	fresh := NewCredential(id, secret, p.config.QuotaWindow, p.config.QuotaBucket)
	p.records[id] = fresh
	p.mu.Unlock()
	p.notifyReplacement(id, from)
	return fresh, nil
}

// MarkRevoked forces a credential into the terminal Revoked state. Used when
// replenishment fails permanently or by administrative action.
func (p *Pool) MarkRevoked(id string) error {
	p.mu.RLock()
	c, ok := p.records[id]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("revoke %q: %w", id, ErrNotFound)
	}

	c.mu.Lock()
	c.state = StateRevoked
	c.cooldownUntil = time.Time{}
	c.mu.Unlock()
	return nil
}

// Get returns the credential with the given id.
func (p *Pool) Get(id string) (*Credential, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.records[id]
	return c, ok
}

// Len returns the number of records, revoked included.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}

// All returns the records sorted by id. The slice is a copy; the records are
// shared.
func (p *Pool) All() []*Credential {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Credential, 0, len(p.records))
	for _, c := range p.records {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// States returns a census of records per state.
func (p *Pool) States() map[State]int {
	census := make(map[State]int, 4)
	for _, c := range p.All() {
		census[c.State()]++
	}
	return census
}

// PoolSnapshot is the serializable form of the whole pool.
type PoolSnapshot struct {
	TakenAt     time.Time            `json:"taken_at"`
	Credentials []CredentialSnapshot `json:"credentials"`
}

// Snapshot captures every record. Ordering is stable by id.
func (p *Pool) Snapshot() *PoolSnapshot {
	records := p.All()
	snap := &PoolSnapshot{
		TakenAt:     time.Now(),
		Credentials: make([]CredentialSnapshot, 0, len(records)),
	}
	for _, c := range records {
		snap.Credentials = append(snap.Credentials, c.snapshot())
	}
	return snap
}

// Restore replaces the pool's membership with the snapshot contents.
// Restored credentials keep their state, counters, and cooldowns but start a
// fresh quota window.
func (p *Pool) Restore(snap *PoolSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records = make(map[string]*Credential, len(snap.Credentials))
	for _, cs := range snap.Credentials {
		c := NewCredential(cs.ID, cs.Secret, p.config.QuotaWindow, p.config.QuotaBucket)
		c.state = cs.State
		c.cooldownUntil = cs.CooldownUntil
		c.consecutiveFailures = cs.ConsecutiveFailures
		c.lastUsedAt = cs.LastUsedAt
		c.lastSuccessAt = cs.LastSuccessAt
		c.totalRequests = cs.TotalRequests
		p.records[cs.ID] = c
	}
}
