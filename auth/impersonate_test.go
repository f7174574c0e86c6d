package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestImpersonationProvider(t *testing.T) {
	expire := time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer source-token" {
			t.Errorf("Authorization = %q", got)
		}
		var body impersonationRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Lifetime != "900s" {
			t.Errorf("lifetime = %q, want 900s", body.Lifetime)
		}
		if len(body.Scope) != 1 || body.Scope[0] != "admin" {
			t.Errorf("scope = %v", body.Scope)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "impersonated",
			"expireTime":  expire.Format(time.RFC3339),
		})
	}))
	defer server.Close()

	p, err := NewImpersonationProvider(ImpersonationConfig{
		Source:     NewStaticTokenProvider("source-token", ""),
		URL:        server.URL,
		Scopes:     []string{"admin"},
		Lifetime:   15 * time.Minute,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewImpersonationProvider() error = %v", err)
	}

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.Value != "impersonated" || !tok.Expiry.Equal(expire) {
		t.Errorf("Token() = %+v", tok)
	}
}

func TestImpersonationProvider_SourceFailure(t *testing.T) {
	p, err := NewImpersonationProvider(ImpersonationConfig{
		Source: NewStaticTokenProvider("", ""),
		URL:    "http://unused.invalid",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Token(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Token() error = %v, want the source failure", err)
	}

	if _, err := NewImpersonationProvider(ImpersonationConfig{URL: "x"}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("missing source error = %v", err)
	}
}
