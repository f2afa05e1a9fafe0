package provision

import (
	"context"
	"sync"
)

// MockProvisioner is a scriptable Provisioner for testing.
type MockProvisioner struct {
	mu sync.Mutex

	// secrets maps id to the secret Provision returns for it.
	secrets map[string]string

	// failures holds ids whose Provision call fails.
	failures map[string]struct{}

	// calls records provisioned ids in call order.
	calls []string

	// released, when non-nil, gates Provision so tests can hold calls open.
	released chan struct{}
}

// NewMockProvisioner creates an empty mock. Unscripted ids succeed with a
// generated secret.
func NewMockProvisioner() *MockProvisioner {
	return &MockProvisioner{
		secrets:  make(map[string]string),
		failures: make(map[string]struct{}),
	}
}

// ScriptSecret makes Provision return secret for id.
func (m *MockProvisioner) ScriptSecret(id, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[id] = secret
}

// ScriptFailure makes Provision fail for id.
func (m *MockProvisioner) ScriptFailure(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = struct{}{}
}

// Hold makes every Provision call block until Release is called.
func (m *MockProvisioner) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = make(chan struct{})
}

// Release unblocks held Provision calls.
func (m *MockProvisioner) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released != nil {
		close(m.released)
		m.released = nil
	}
}

// Calls returns the ids provisioned so far.
func (m *MockProvisioner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Provision implements Provisioner.
func (m *MockProvisioner) Provision(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, id)
	gate := m.released
	secret, scripted := m.secrets[id]
	_, fail := m.failures[id]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", &ProvisioningError{ID: id, Cause: ctx.Err()}
		}
	}

	if fail {
		return "", &ProvisioningError{ID: id, StatusCode: 500, Message: "automation failed"}
	}
	if !scripted {
		secret = "provisioned-" + id
	}
	return secret, nil
}
