package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client dispatches one generation request with one credential.
//
// Dispatch must never panic and never surfaces a Go error to the caller:
// transport failures (including the per-call timeout firing) are reported
// inside the returned RawOutcome so that the router has a single path for
// classifying every attempt.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Dispatch sends the request upstream authenticated with secret and
	// returns the raw outcome. The returned outcome is never nil.
	Dispatch(ctx context.Context, secret string, req *GenerateRequest) *RawOutcome
}

// ClientConfig configures the Gemini HTTP client.
type ClientConfig struct {
	// BaseURL is the API base (e.g., "https://generativelanguage.googleapis.com").
	BaseURL string

	// DefaultModel is used when the request does not name a model.
	DefaultModel string

	// Timeout bounds a single dispatch, connection setup included.
	Timeout time.Duration

	// MaxIdleConns and MaxIdleConnsPerHost tune the pooled transport.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// GeminiClient is the HTTP client for the Gemini generateContent API.
// It maintains a pooled transport shared by all credentials; the credential
// only varies per call, as a query parameter.
type GeminiClient struct {
	config ClientConfig
	client *http.Client
}

// NewGeminiClient creates a Gemini client with connection pooling.
func NewGeminiClient(cfg ClientConfig) *GeminiClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 10
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &GeminiClient{
		config: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// geminiRequest is the wire format for generateContent.
type geminiRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// geminiResponse is the wire format of a successful generateContent response.
type geminiResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// Dispatch implements Client. The per-call timeout comes from the client
// configuration; a caller context that is cancelled earlier wins.
func (c *GeminiClient) Dispatch(ctx context.Context, secret string, req *GenerateRequest) *RawOutcome {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.config.DefaultModel
	}

	body, err := json.Marshal(geminiRequest{
		Contents: req.Contents,
		GenerationConfig: &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	})
	if err != nil {
		return &RawOutcome{Err: fmt.Errorf("encode request: %w", err), Latency: time.Since(start)}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.config.BaseURL, model, secret)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &RawOutcome{Err: fmt.Errorf("build request: %w", err), Latency: time.Since(start)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &RawOutcome{Err: err, Latency: time.Since(start)}
	}
	defer resp.Body.Close()

	// Cap the body read so a misbehaving upstream cannot exhaust memory.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return &RawOutcome{StatusCode: resp.StatusCode, Err: err, Latency: time.Since(start)}
	}

	return &RawOutcome{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Latency:    time.Since(start),
	}
}

// parseRetryAfter parses the delay-seconds form of a Retry-After header.
// The HTTP-date form is rare on this API and is ignored.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// DecodeResponse parses a successful RawOutcome body into a normalized
// GenerateResponse. It returns an error if the body does not contain at
// least one candidate.
func DecodeResponse(raw *RawOutcome) (*GenerateResponse, error) {
	var wire geminiResponse
	if err := json.Unmarshal(raw.Body, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Candidates) == 0 {
		return nil, fmt.Errorf("response contains no candidates")
	}

	candidate := wire.Candidates[0]
	var text string
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}

	return &GenerateResponse{
		Content:      text,
		FinishReason: candidate.FinishReason,
		Model:        wire.ModelVersion,
		Usage: TokenUsage{
			PromptTokens:     wire.UsageMetadata.PromptTokenCount,
			CompletionTokens: wire.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wire.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
