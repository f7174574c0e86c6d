package auth

import (
	"context"
)

// Context keys for auth-related values.
type contextKey int

const (
	tokenKey contextKey = iota
)

// WithToken returns a new context carrying the token authorizing the call.
func WithToken(ctx context.Context, tok *Token) context.Context {
	return context.WithValue(ctx, tokenKey, tok)
}

// TokenFromContext retrieves the token attached by WithToken.
// Returns nil if no token is present.
func TokenFromContext(ctx context.Context) *Token {
	tok, _ := ctx.Value(tokenKey).(*Token)
	return tok
}

// HeaderFromContext returns the Authorization header value for the token in
// ctx, or empty string if none is present.
func HeaderFromContext(ctx context.Context) string {
	tok := TokenFromContext(ctx)
	if tok == nil {
		return ""
	}
	return tok.HeaderValue()
}
