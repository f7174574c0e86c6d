// Package auth obtains and refreshes authorization tokens for outbound calls.
//
// A TokenProvider is a credential source: a static API key, a service-account
// key, a metadata endpoint, an impersonation exchange, or any oauth2
// TokenSource. A TokenCache wraps a provider and serves its token until it
// comes within a safety margin of expiry, then refreshes it with exactly one
// fetch no matter how many callers are waiting.
//
// Basic usage:
//
//	key, err := auth.ParseServiceAccountKey(keyJSON)
//	if err != nil {
//	    return err
//	}
//	provider, err := auth.NewServiceAccountProvider(auth.ServiceAccountConfig{
//	    Key:    key,
//	    Scopes: []string{"https://example.com/auth/storage"},
//	})
//	if err != nil {
//	    return err
//	}
//	cache := auth.NewTokenCache(provider, auth.TokenCacheConfig{})
//
//	client := &http.Client{Transport: auth.NewTransport(cache, auth.TransportConfig{})}
//
// Token fetch failures surface as resilience.AuthError. Transport and
// PerRPCCredentials attach the token to HTTP and gRPC calls respectively.
package auth
