package auth

import "errors"

// Sentinel errors for credential sources.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrEmptyToken         = errors.New("auth: provider returned an empty token")
	ErrTokenEndpoint      = errors.New("auth: token endpoint failed")
	ErrProviderFailed     = errors.New("auth: token provider failed")
	ErrNoProvider         = errors.New("auth: no provider produced a token")
	ErrUnknownKind        = errors.New("auth: unknown provider kind")
)
