package server

import "time"

// GenerateRequest is the wire form of a generation request. Prompt is a
// convenience for single-turn requests; Contents wins when both are set.
type GenerateRequest struct {
	Model           string        `json:"model,omitempty"`
	Prompt          string        `json:"prompt,omitempty"`
	Contents        []ContentPart `json:"contents,omitempty"`
	Temperature     float64       `json:"temperature,omitempty"`
	MaxOutputTokens int           `json:"max_output_tokens,omitempty"`
}

// ContentPart is one conversation turn in a generation request.
type ContentPart struct {
	Role string   `json:"role,omitempty"`
	Text []string `json:"text"`
}

// AdmitKeyRequest is the wire form of a credential admission.
type AdmitKeyRequest struct {
	// ID uniquely identifies the credential, conventionally the email it
	// was provisioned under.
	ID string `json:"id" validate:"required,min=1,max=256"`

	// Key is the secret material. Never echoed back.
	Key string `json:"key" validate:"required,min=10"`
}

// AdmitKeyResponse confirms an admission without exposing the secret.
type AdmitKeyResponse struct {
	ID        string `json:"id"`
	MaskedKey string `json:"masked_key"`
	State     string `json:"state"`
}

// KeyStatus is one credential's externally visible state.
type KeyStatus struct {
	ID                  string     `json:"id"`
	MaskedKey           string     `json:"masked_key"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalRequests       int64      `json:"total_requests"`
	WindowCount         int64      `json:"window_count"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
	LastUsedAt          *time.Time `json:"last_used_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
}

// KeyListResponse is the GET /v1/keys payload.
type KeyListResponse struct {
	Keys  []KeyStatus `json:"keys"`
	Total int         `json:"total"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status         string         `json:"status"`
	PoolSize       int            `json:"pool_size"`
	UsableCapacity int            `json:"usable_capacity"`
	States         map[string]int `json:"states"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error message and a machine-readable type.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewErrorResponse builds an ErrorResponse.
func NewErrorResponse(errType, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}}
}
