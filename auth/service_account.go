package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTBearerGrantType is the OAuth2 grant type for signed-assertion exchange.
const JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// ServiceAccountKey is the JSON key file issued for a service account.
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccountKey parses a service-account key file.
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("%w: parse key file: %w", ErrInvalidCredentials, err)
	}
	if key.Type != "" && key.Type != "service_account" {
		return nil, fmt.Errorf("%w: key type %q", ErrInvalidCredentials, key.Type)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("%w: key file needs client_email and private_key", ErrMissingCredentials)
	}
	return &key, nil
}

// ServiceAccountConfig configures a ServiceAccountProvider.
type ServiceAccountConfig struct {
	// Key is the parsed service-account key. Required.
	Key *ServiceAccountKey

	// Audience switches the provider to self-signed mode: the signed JWT is
	// used directly as the token, with this audience.
	Audience string

	// Scopes are requested in the assertion's scope claim.
	Scopes []string

	// Subject is the user to act as, for domain-wide delegation.
	// Default: Key.ClientEmail
	Subject string

	// TokenURL is where assertions are exchanged for access tokens.
	// Default: Key.TokenURI
	TokenURL string

	// TokenTTL is the lifetime of each signed assertion.
	// Default: 1 hour
	TokenTTL time.Duration

	// HTTPClient is used for assertion exchange.
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client

	// Now supplies the signing time.
	// Default: time.Now
	Now func() time.Time
}

// ServiceAccountProvider mints tokens from a service-account key. In
// self-signed mode it returns the signed JWT itself; otherwise it exchanges
// the JWT at the token endpoint with the jwt-bearer grant.
type ServiceAccountProvider struct {
	config     ServiceAccountConfig
	signingKey *rsa.PrivateKey
}

// NewServiceAccountProvider creates a service-account provider.
func NewServiceAccountProvider(config ServiceAccountConfig) (*ServiceAccountProvider, error) {
	if config.Key == nil {
		return nil, fmt.Errorf("%w: service account key is required", ErrMissingCredentials)
	}

	signingKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(config.Key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %w", ErrInvalidCredentials, err)
	}

	// Apply defaults
	if config.Subject == "" {
		config.Subject = config.Key.ClientEmail
	}
	if config.TokenURL == "" {
		config.TokenURL = config.Key.TokenURI
	}
	if config.Audience == "" && config.TokenURL == "" {
		return nil, fmt.Errorf("%w: audience or token URL is required", ErrMissingCredentials)
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}
	config.HTTPClient = defaultHTTPClient(config.HTTPClient)
	if config.Now == nil {
		config.Now = time.Now
	}

	return &ServiceAccountProvider{
		config:     config,
		signingKey: signingKey,
	}, nil
}

// assertionClaims are the claims of a service-account assertion.
type assertionClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Token implements TokenProvider.
func (p *ServiceAccountProvider) Token(ctx context.Context) (*Token, error) {
	now := p.config.Now()
	expiry := now.Add(p.config.TokenTTL)

	audience := p.config.Audience
	if audience == "" {
		audience = p.config.TokenURL
	}
	assertion, err := p.sign(audience, now, expiry)
	if err != nil {
		return nil, err
	}

	if p.config.Audience != "" {
		return &Token{Value: assertion, Type: DefaultTokenType, Expiry: expiry}, nil
	}
	return p.exchange(ctx, assertion, now)
}

// Config returns the effective provider configuration.
func (p *ServiceAccountProvider) Config() ServiceAccountConfig {
	return p.config
}

func (p *ServiceAccountProvider) sign(audience string, now, expiry time.Time) (string, error) {
	claims := assertionClaims{
		Scope: strings.Join(p.config.Scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.config.Key.ClientEmail,
			Subject:   p.config.Subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if p.config.Key.PrivateKeyID != "" {
		token.Header["kid"] = p.config.Key.PrivateKeyID
	}

	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign assertion: %w", err)
	}
	return signed, nil
}

func (p *ServiceAccountProvider) exchange(ctx context.Context, assertion string, now time.Time) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", JWTBearerGrantType)
	form.Set("assertion", assertion)

	req, err := newRequest(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	if err := doTokenRequest(p.config.HTTPClient, req, &resp); err != nil {
		return nil, err
	}
	return resp.token(now)
}

// Ensure ServiceAccountProvider implements TokenProvider
var _ TokenProvider = (*ServiceAccountProvider)(nil)
