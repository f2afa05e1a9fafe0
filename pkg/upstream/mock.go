package upstream

import (
	"context"
	"net/http"
	"sync"
)

// MockClient is a scriptable Client implementation for testing.
//
// Outcomes can be scripted per secret (so a test can make one credential
// fail and another succeed) or queued globally. Every dispatch is recorded
// for assertion.
type MockClient struct {
	mu sync.Mutex

	// perSecret maps a secret to the outcome it always produces.
	perSecret map[string]*RawOutcome

	// queue is consumed in order when the secret has no scripted outcome.
	queue []*RawOutcome

	// calls records the secrets used, in dispatch order.
	calls []string
}

// NewMockClient creates an empty mock client. With nothing scripted, every
// dispatch succeeds with a minimal valid response body.
func NewMockClient() *MockClient {
	return &MockClient{perSecret: make(map[string]*RawOutcome)}
}

// ScriptSecret makes every dispatch with the given secret produce outcome.
func (m *MockClient) ScriptSecret(secret string, outcome *RawOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perSecret[secret] = outcome
}

// Enqueue appends an outcome consumed by the next unscripted dispatch.
func (m *MockClient) Enqueue(outcome *RawOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, outcome)
}

// Calls returns the secrets used so far, in dispatch order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Dispatch implements Client.
func (m *MockClient) Dispatch(_ context.Context, secret string, _ *GenerateRequest) *RawOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, secret)

	if outcome, ok := m.perSecret[secret]; ok {
		return outcome
	}
	if len(m.queue) > 0 {
		outcome := m.queue[0]
		m.queue = m.queue[1:]
		return outcome
	}
	return SuccessOutcome("ok")
}

// SuccessOutcome builds a RawOutcome carrying a minimal valid success body
// whose single candidate contains text.
func SuccessOutcome(text string) *RawOutcome {
	return &RawOutcome{
		StatusCode: http.StatusOK,
		Body: []byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"` + text + `"}]},"finishReason":"STOP"}],` +
			`"usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":1,"totalTokenCount":2}}`),
	}
}
