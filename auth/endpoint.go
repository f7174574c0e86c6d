package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/callkit/resilience"
)

// tokenResponse is the OAuth2 token endpoint response format.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

func (r *tokenResponse) token(now time.Time) (*Token, error) {
	if r.AccessToken == "" {
		return nil, ErrEmptyToken
	}
	tok := &Token{
		Value: r.AccessToken,
		Type:  normalizeTokenType(r.TokenType),
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	if r.Scope != "" {
		tok.Metadata = map[string]any{"scope": r.Scope}
	}
	return tok, nil
}

// doTokenRequest sends req and decodes a JSON body into out. Non-2xx
// responses are reported as ErrTokenEndpoint wrapping a
// resilience.HTTPStatusError.
func doTokenRequest(client *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenEndpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: %w", ErrTokenEndpoint, &resilience.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		})
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrTokenEndpoint, err)
	}
	return nil
}

func newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// normalizeTokenType maps the lowercase "bearer" many servers return to the
// canonical scheme name.
func normalizeTokenType(typ string) string {
	if typ == "" || strings.EqualFold(typ, DefaultTokenType) {
		return DefaultTokenType
	}
	return typ
}
