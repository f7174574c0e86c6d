package auth

import (
	"context"
	"maps"
	"time"
)

// DefaultTokenType is used when a Token has no Type.
const DefaultTokenType = "Bearer"

// Token is an authorization credential.
type Token struct {
	// Value is the opaque credential string.
	Value string

	// Type is the authorization scheme, such as "Bearer".
	// Default: DefaultTokenType
	Type string

	// Expiry is when the token stops being valid. Zero means it never expires.
	Expiry time.Time

	// Metadata carries source-specific extras, such as granted scopes.
	Metadata map[string]any
}

// HeaderValue returns the Authorization header value, "<Type> <Value>".
func (t *Token) HeaderValue() string {
	typ := t.Type
	if typ == "" {
		typ = DefaultTokenType
	}
	return typ + " " + t.Value
}

// ExpiresWithin reports whether the token expires within d of now.
// Tokens without an expiry never do.
func (t *Token) ExpiresWithin(now time.Time, d time.Duration) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Add(d).Before(t.Expiry)
}

// Valid reports whether the token is non-empty and unexpired at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.Value != "" && !t.ExpiresWithin(now, 0)
}

// Clone returns a copy of the token with its own metadata map.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	c.Metadata = maps.Clone(t.Metadata)
	return &c
}

// String hides the credential so tokens can be logged safely.
func (t *Token) String() string {
	typ := t.Type
	if typ == "" {
		typ = DefaultTokenType
	}
	return typ + " [REDACTED]"
}

// TokenProvider is a credential source.
type TokenProvider interface {
	// Token returns a fresh token. Implementations fail with an error
	// describing misconfiguration or an unreachable credential source.
	Token(ctx context.Context) (*Token, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (*Token, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context) (*Token, error) {
	return f(ctx)
}

// StaticTokenProvider always returns the same token, typically an API key.
type StaticTokenProvider struct {
	token Token
}

// NewStaticTokenProvider creates a provider for a fixed credential.
func NewStaticTokenProvider(value, tokenType string) *StaticTokenProvider {
	return &StaticTokenProvider{token: Token{Value: value, Type: tokenType}}
}

// Token implements TokenProvider.
func (p *StaticTokenProvider) Token(_ context.Context) (*Token, error) {
	if p.token.Value == "" {
		return nil, ErrMissingCredentials
	}
	return p.token.Clone(), nil
}

// Ensure implementations satisfy TokenProvider
var (
	_ TokenProvider = TokenProviderFunc(nil)
	_ TokenProvider = (*StaticTokenProvider)(nil)
)
