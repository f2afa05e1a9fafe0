package upstream

import "time"

// GenerateRequest represents a provider-agnostic generation request.
// It is transformed to the upstream wire format by the client.
type GenerateRequest struct {
	// Model is the model identifier (e.g., "gemini-2.0-flash").
	// If empty, the client's configured default model is used.
	Model string `json:"model,omitempty"`

	// Contents is the conversation history.
	Contents []Content `json:"contents"`

	// Temperature controls randomness (0.0 to 2.0).
	Temperature float64 `json:"temperature,omitempty"`

	// MaxOutputTokens is the maximum number of tokens to generate.
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`

	// Metadata contains internal request context (request ID, caller).
	// It is never sent upstream.
	Metadata map[string]string `json:"-"`
}

// Content is a single turn in a conversation.
type Content struct {
	// Role identifies the turn author ("user" or "model").
	Role string `json:"role,omitempty"`

	// Parts holds the turn content fragments.
	Parts []Part `json:"parts"`
}

// Part is one fragment of turn content. Only text is supported.
type Part struct {
	Text string `json:"text"`
}

// GenerateResponse represents a normalized generation response.
type GenerateResponse struct {
	// Content is the generated text of the first candidate.
	Content string `json:"content"`

	// FinishReason indicates why generation stopped (e.g., "STOP", "MAX_TOKENS").
	FinishReason string `json:"finish_reason"`

	// Usage contains token accounting reported by the upstream.
	Usage TokenUsage `json:"usage"`

	// Model is the model that produced the response.
	Model string `json:"model"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RawOutcome is the unclassified result of one upstream dispatch.
//
// Exactly one of the following is true: Err is non-nil (transport-level
// failure, including timeout), or StatusCode is set from an HTTP response.
// The classify package maps a RawOutcome to a typed outcome; nothing else
// should interpret it.
type RawOutcome struct {
	// StatusCode is the HTTP status code (0 when Err is set).
	StatusCode int

	// Body is the raw response body (may be empty).
	Body []byte

	// RetryAfter is the parsed Retry-After hint, if the upstream sent one.
	RetryAfter time.Duration

	// Err is the transport error, if the request never produced a response.
	Err error

	// Latency is the wall-clock duration of the dispatch attempt.
	Latency time.Duration
}
