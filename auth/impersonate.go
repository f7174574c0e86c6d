package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ImpersonationConfig configures an ImpersonationProvider.
type ImpersonationConfig struct {
	// Source authorizes the exchange request. Required.
	Source TokenProvider

	// URL is the access-token generation endpoint for the target principal. Required.
	URL string

	// Scopes are requested for the impersonated token.
	Scopes []string

	// Delegates is the chain of principals the grant passes through.
	Delegates []string

	// Lifetime is the requested token lifetime.
	// Default: 1 hour
	Lifetime time.Duration

	// HTTPClient is used for requests.
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client
}

// ImpersonationProvider exchanges a source credential for a short-lived
// token of another principal.
type ImpersonationProvider struct {
	config ImpersonationConfig
}

// NewImpersonationProvider creates an impersonation provider.
func NewImpersonationProvider(config ImpersonationConfig) (*ImpersonationProvider, error) {
	if config.Source == nil || config.URL == "" {
		return nil, fmt.Errorf("%w: impersonation needs a source and URL", ErrMissingCredentials)
	}
	if config.Lifetime <= 0 {
		config.Lifetime = time.Hour
	}
	config.HTTPClient = defaultHTTPClient(config.HTTPClient)
	return &ImpersonationProvider{config: config}, nil
}

type impersonationRequest struct {
	Scope     []string `json:"scope,omitempty"`
	Delegates []string `json:"delegates,omitempty"`
	Lifetime  string   `json:"lifetime"`
}

type impersonationResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpireTime  time.Time `json:"expireTime"`
}

// Token implements TokenProvider.
func (p *ImpersonationProvider) Token(ctx context.Context) (*Token, error) {
	source, err := p.config.Source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: impersonation source: %w", err)
	}

	body, err := json.Marshal(impersonationRequest{
		Scope:     p.config.Scopes,
		Delegates: p.config.Delegates,
		Lifetime:  fmt.Sprintf("%ds", int64(p.config.Lifetime/time.Second)),
	})
	if err != nil {
		return nil, err
	}

	req, err := newRequest(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", source.HeaderValue())

	var resp impersonationResponse
	if err := doTokenRequest(p.config.HTTPClient, req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, ErrEmptyToken
	}
	return &Token{Value: resp.AccessToken, Type: DefaultTokenType, Expiry: resp.ExpireTime}, nil
}

// Ensure ImpersonationProvider implements TokenProvider
var _ TokenProvider = (*ImpersonationProvider)(nil)
