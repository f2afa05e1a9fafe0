package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrProvisioningFailed is the sentinel for all provisioning failures; use
// errors.Is to detect them and errors.As for the detailed ProvisioningError.
var ErrProvisioningFailed = errors.New("provisioning failed")

// Provisioner obtains a fresh secret for a credential id.
//
// Implementations must be safe for concurrent use; the monitor may have
// several replenishments in flight for different ids.
type Provisioner interface {
	// Provision returns the new secret for the credential, or an error if
	// the pipeline could not produce one.
	Provision(ctx context.Context, id string) (string, error)
}

// ProvisioningError describes a failed provisioning attempt.
type ProvisioningError struct {
	// ID is the credential the request was for.
	ID string

	// StatusCode is the pipeline's HTTP status (0 for transport failures).
	StatusCode int

	// Message is the pipeline's error message, if any.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ProvisioningError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provisioning for %q failed (status %d): %s", e.ID, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provisioning for %q failed: %v", e.ID, e.Cause)
}

// Is implements error matching for errors.Is().
func (e *ProvisioningError) Is(target error) bool {
	return target == ErrProvisioningFailed
}

// Unwrap returns the underlying error for error chain traversal.
func (e *ProvisioningError) Unwrap() error {
	return e.Cause
}

// Config configures the HTTP provisioner.
type Config struct {
	// BaseURL is the provisioning pipeline's base URL.
	BaseURL string

	// Timeout bounds one provisioning call. Browser automation is slow;
	// default is generous.
	Timeout time.Duration
}

// HTTPProvisioner asks the provisioning pipeline for a key over HTTP.
// The pipeline exposes POST {base}/generate-key/{id} and answers with the
// new key once its automation run completes.
type HTTPProvisioner struct {
	config Config
	client *http.Client
}

// NewHTTPProvisioner creates an HTTP provisioner.
func NewHTTPProvisioner(cfg Config) *HTTPProvisioner {
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Minute
	}
	return &HTTPProvisioner{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// provisionResponse is the pipeline's success payload.
type provisionResponse struct {
	Key       string `json:"key"`
	ProjectID string `json:"project_id"`
}

// Provision implements Provisioner.
func (p *HTTPProvisioner) Provision(ctx context.Context, id string) (string, error) {
	endpoint := fmt.Sprintf("%s/generate-key/%s", p.config.BaseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", &ProvisioningError{ID: id, Cause: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProvisioningError{ID: id, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ProvisioningError{ID: id, StatusCode: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProvisioningError{ID: id, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var parsed provisionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProvisioningError{ID: id, StatusCode: resp.StatusCode, Cause: err}
	}
	if parsed.Key == "" {
		return "", &ProvisioningError{ID: id, StatusCode: resp.StatusCode, Message: "response contains no key"}
	}

	return parsed.Key, nil
}
