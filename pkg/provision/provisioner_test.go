package provision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProvisioner_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/generate-key/alice@example.com" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key":"AIzaFreshKey001","project_id":"proj-123"}`))
	}))
	defer server.Close()

	p := NewHTTPProvisioner(Config{BaseURL: server.URL})
	secret, err := p.Provision(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if secret != "AIzaFreshKey001" {
		t.Errorf("secret = %q, want AIzaFreshKey001", secret)
	}
}

func TestHTTPProvisioner_PipelineError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "automation failed: cookies expired", http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewHTTPProvisioner(Config{BaseURL: server.URL})
	_, err := p.Provision(context.Background(), "bob")
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("err = %v, want ErrProvisioningFailed", err)
	}

	var pe *ProvisioningError
	if !errors.As(err, &pe) {
		t.Fatalf("error type %T, want *ProvisioningError", err)
	}
	if pe.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", pe.StatusCode)
	}
	if pe.ID != "bob" {
		t.Errorf("ID = %q, want bob", pe.ID)
	}
}

func TestHTTPProvisioner_EmptyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"project_id":"proj-123"}`))
	}))
	defer server.Close()

	p := NewHTTPProvisioner(Config{BaseURL: server.URL})
	if _, err := p.Provision(context.Background(), "x"); !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("err = %v, want ErrProvisioningFailed", err)
	}
}

func TestHTTPProvisioner_TransportFailure(t *testing.T) {
	p := NewHTTPProvisioner(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := p.Provision(context.Background(), "x"); !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("err = %v, want ErrProvisioningFailed", err)
	}
}
