package auth

import (
	"net/http"
)

// TransportConfig configures a Transport.
type TransportConfig struct {
	// Base performs the requests.
	// Default: http.DefaultTransport
	Base http.RoundTripper

	// HeaderName is the header that carries the token.
	// Default: "Authorization"
	HeaderName string

	// Raw sends the bare token value without the "<Type> " prefix, as API
	// key headers expect.
	Raw bool
}

// Transport is an http.RoundTripper that attaches a cached token to every
// request. When the server answers 401 it invalidates the cache and retries
// the request once with a freshly fetched token, provided the request body
// can be replayed.
type Transport struct {
	cache  *TokenCache
	config TransportConfig
}

// NewTransport creates an authorizing transport.
//
// Usage:
//
//	client := &http.Client{Transport: auth.NewTransport(cache, auth.TransportConfig{})}
func NewTransport(cache *TokenCache, config TransportConfig) *Transport {
	// Apply defaults
	if config.Base == nil {
		config.Base = http.DefaultTransport
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	return &Transport{cache: cache, config: config}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, tok, err := t.send(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	// Clock skew or revocation: drop the token and try once more.
	_ = resp.Body.Close()
	t.cache.Reject(tok)

	retry := req
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry = req.Clone(req.Context())
		retry.Body = body
	}
	resp, _, err = t.send(retry)
	return resp, err
}

func (t *Transport) send(req *http.Request) (*http.Response, *Token, error) {
	tok, err := t.cache.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, nil, err
	}

	// RoundTrippers must not modify the caller's request
	out := req.Clone(req.Context())
	if t.config.Raw {
		out.Header.Set(t.config.HeaderName, tok.Value)
	} else {
		out.Header.Set(t.config.HeaderName, tok.HeaderValue())
	}
	resp, err := t.config.Base.RoundTrip(out)
	return resp, tok, err
}

// Ensure Transport implements http.RoundTripper
var _ http.RoundTripper = (*Transport)(nil)
