package keypool

import (
	"sync"
	"time"
)

// State is the lifecycle state of a credential.
type State int

const (
	// StateActive means the credential is eligible for selection.
	StateActive State = iota

	// StateCooling means the credential is in a time-bounded cooldown and
	// becomes eligible again once CooldownUntil elapses.
	StateCooling

	// StateExhausted means the credential needs external replenishment
	// before it can serve again.
	StateExhausted

	// StateRevoked means the credential was rejected by the upstream as
	// invalid. Terminal; only administrative replacement leaves this state.
	StateRevoked
)

// String returns the state name for logging and metrics labels.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCooling:
		return "cooling"
	case StateExhausted:
		return "exhausted"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Credential is the in-memory health record for one upstream API key.
//
// The record mutex covers state, cooldownUntil, failure counters, and the
// usage timestamps. The quota window synchronizes itself. The secret is
// reachable only through Secret(), and nothing in this package ever logs it.
type Credential struct {
	mu sync.Mutex

	// id is the opaque identifier (owning account/email). Immutable.
	id string

	secret              string
	state               State
	cooldownUntil       time.Time
	consecutiveFailures int
	lastUsedAt          time.Time
	lastSuccessAt       time.Time
	totalRequests       int64

	quota *QuotaWindow
}

// NewCredential creates an Active credential with zeroed counters.
func NewCredential(id, secret string, window, bucketSize time.Duration) *Credential {
	return &Credential{
		id:     id,
		secret: secret,
		state:  StateActive,
		quota:  NewQuotaWindow(window, bucketSize),
	}
}

// ID returns the credential's identifier.
func (c *Credential) ID() string { return c.id }

// Secret returns the secret material for dispatching a request. Callers must
// not log or persist it outside the snapshot path.
func (c *Credential) Secret() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secret
}

// MaskedSecret returns a short preview safe for logs and stats output.
func (c *Credential) MaskedSecret() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maskSecret(c.secret)
}

// State returns the current lifecycle state.
func (c *Credential) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CooldownUntil returns the end of the current cooldown. Meaningful only
// while the credential is Cooling.
func (c *Credential) CooldownUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cooldownUntil
}

// ConsecutiveFailures returns the current failure streak.
func (c *Credential) ConsecutiveFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutiveFailures
}

// LastUsedAt returns when the credential last served an attempt.
func (c *Credential) LastUsedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsedAt
}

// LastSuccessAt returns when the credential last produced a success.
func (c *Credential) LastSuccessAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccessAt
}

// TotalRequests returns the lifetime attempt count.
func (c *Credential) TotalRequests() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRequests
}

// WindowCount returns the number of attempts within the current quota window.
func (c *Credential) WindowCount(now time.Time) int64 {
	return c.quota.Count(now)
}

// maskSecret keeps the first four and last two characters of a secret.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "******"
	}
	return secret[:4] + "..." + secret[len(secret)-2:]
}

// CredentialSnapshot is the serializable form of one credential. The quota
// window is not captured; a restored credential starts a fresh window.
type CredentialSnapshot struct {
	ID                  string    `json:"id" yaml:"id"`
	Secret              string    `json:"secret" yaml:"secret"`
	State               State     `json:"state" yaml:"state"`
	CooldownUntil       time.Time `json:"cooldown_until" yaml:"cooldown_until"`
	ConsecutiveFailures int       `json:"consecutive_failures" yaml:"consecutive_failures"`
	LastUsedAt          time.Time `json:"last_used_at" yaml:"last_used_at"`
	LastSuccessAt       time.Time `json:"last_success_at" yaml:"last_success_at"`
	TotalRequests       int64     `json:"total_requests" yaml:"total_requests"`
}

// snapshot captures the credential under its lock.
func (c *Credential) snapshot() CredentialSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CredentialSnapshot{
		ID:                  c.id,
		Secret:              c.secret,
		State:               c.state,
		CooldownUntil:       c.cooldownUntil,
		ConsecutiveFailures: c.consecutiveFailures,
		LastUsedAt:          c.lastUsedAt,
		LastSuccessAt:       c.lastSuccessAt,
		TotalRequests:       c.totalRequests,
	}
}
