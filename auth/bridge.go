package auth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
	"google.golang.org/grpc/credentials"
)

// TokenSource adapts a TokenProvider to oauth2.TokenSource, so a TokenCache
// can back oauth2.NewClient or any library that accepts a TokenSource.
// Every Token call uses ctx.
func TokenSource(ctx context.Context, p TokenProvider) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: p}
}

type tokenSource struct {
	ctx      context.Context
	provider TokenProvider
}

// Token implements oauth2.TokenSource.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.provider.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tok.Value,
		TokenType:   tok.Type,
		Expiry:      tok.Expiry,
	}, nil
}

// FromTokenSource adapts an oauth2.TokenSource to TokenProvider. The
// TokenSource's own context, if any, governs its requests.
func FromTokenSource(ts oauth2.TokenSource) TokenProvider {
	return TokenProviderFunc(func(ctx context.Context) (*Token, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := ts.Token()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, ErrEmptyToken
		}
		out := &Token{
			Value:  tok.AccessToken,
			Type:   normalizeTokenType(tok.Type()),
			Expiry: tok.Expiry,
		}
		if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
			out.Metadata = map[string]any{"scope": scope}
		}
		return out, nil
	})
}

// PerRPCCredentials attaches tokens from a provider to gRPC calls.
type PerRPCCredentials struct {
	provider   TokenProvider
	requireTLS bool
}

// NewPerRPCCredentials creates gRPC call credentials backed by p, typically
// a TokenCache. Pass requireTLS false only for local plaintext testing.
func NewPerRPCCredentials(p TokenProvider, requireTLS bool) *PerRPCCredentials {
	return &PerRPCCredentials{provider: p, requireTLS: requireTLS}
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *PerRPCCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	if c.requireTLS {
		ri, ok := credentials.RequestInfoFromContext(ctx)
		if ok {
			if err := credentials.CheckSecurityLevel(ri.AuthInfo, credentials.PrivacyAndIntegrity); err != nil {
				return nil, errors.Join(ErrInvalidCredentials, err)
			}
		}
	}

	tok, err := c.provider.Token(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": tok.HeaderValue()}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *PerRPCCredentials) RequireTransportSecurity() bool {
	return c.requireTLS
}

// Ensure adapters implement their interfaces
var (
	_ oauth2.TokenSource            = (*tokenSource)(nil)
	_ credentials.PerRPCCredentials = (*PerRPCCredentials)(nil)
)
