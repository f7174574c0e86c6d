package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jonwraymond/callkit/secret"
)

// Built-in provider kinds.
const (
	KindStatic            = "static"
	KindServiceAccount    = "service_account"
	KindMetadata          = "metadata"
	KindClientCredentials = "oauth2_client_credentials"
	KindImpersonation     = "impersonation"
)

// ProviderConfig describes a credential source. Only the fields relevant to
// Kind are read.
type ProviderConfig struct {
	// Kind selects the provider factory.
	Kind string

	// Token and TokenType configure the static provider.
	Token     string
	TokenType string

	// CredentialsJSON is a service-account key file.
	CredentialsJSON []byte

	// Audience selects self-signed service-account mode.
	Audience string

	// Scopes are requested by every kind that supports them.
	Scopes []string

	// URL is the metadata, token, or impersonation endpoint.
	URL string

	// Headers are sent to the metadata endpoint.
	Headers map[string]string

	// ClientID and ClientSecret configure the client-credentials grant.
	ClientID     string
	ClientSecret string

	// Source authorizes impersonation requests.
	Source TokenProvider

	// Lifetime is the requested impersonated token lifetime.
	Lifetime time.Duration

	// HTTPClient is used by network-backed providers.
	HTTPClient *http.Client

	// Secrets resolves secretref references in Token, ClientSecret,
	// CredentialsJSON and Headers before the provider is built.
	// Default: nil (values are used as given)
	Secrets *secret.Resolver
}

// resolveSecrets returns a copy of cfg with secret references replaced.
func (cfg ProviderConfig) resolveSecrets(ctx context.Context) (ProviderConfig, error) {
	if cfg.Secrets == nil {
		return cfg, nil
	}

	var err error
	if cfg.Token, err = cfg.Secrets.ResolveValue(ctx, cfg.Token); err != nil {
		return cfg, fmt.Errorf("auth: resolve token: %w", err)
	}
	if cfg.ClientSecret, err = cfg.Secrets.ResolveValue(ctx, cfg.ClientSecret); err != nil {
		return cfg, fmt.Errorf("auth: resolve client secret: %w", err)
	}
	if ref := string(cfg.CredentialsJSON); ref != "" {
		if _, _, ok := secret.ParseSecretRef(ref); ok {
			resolved, err := cfg.Secrets.ResolveValue(ctx, ref)
			if err != nil {
				return cfg, fmt.Errorf("auth: resolve credentials: %w", err)
			}
			cfg.CredentialsJSON = []byte(resolved)
		}
	}
	if cfg.Headers, err = cfg.Secrets.ResolveMap(ctx, cfg.Headers); err != nil {
		return cfg, fmt.Errorf("auth: resolve headers: %w", err)
	}
	return cfg, nil
}

// ProviderFactory creates a TokenProvider from configuration.
type ProviderFactory func(cfg ProviderConfig) (TokenProvider, error)

// Registry maps provider kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates a registry holding the built-in provider kinds.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]ProviderFactory)}
	_ = r.Register(KindStatic, newStaticFromConfig)
	_ = r.Register(KindServiceAccount, newServiceAccountFromConfig)
	_ = r.Register(KindMetadata, newMetadataFromConfig)
	_ = r.Register(KindClientCredentials, newClientCredentialsFromConfig)
	_ = r.Register(KindImpersonation, newImpersonationFromConfig)
	return r
}

// Register adds a provider factory.
func (r *Registry) Register(kind string, factory ProviderFactory) error {
	if kind == "" || factory == nil {
		return errors.New("auth: invalid provider registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("auth: provider kind %q already registered", kind)
	}

	r.factories[kind] = factory
	return nil
}

// Create instantiates a provider for cfg.Kind after resolving secret
// references in cfg.
func (r *Registry) Create(ctx context.Context, cfg ProviderConfig) (TokenProvider, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}

	cfg, err := cfg.resolveSecrets(ctx)
	if err != nil {
		return nil, err
	}
	return factory(cfg)
}

// Kinds returns registered provider kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// NewProvider creates a provider of a built-in kind.
func NewProvider(ctx context.Context, cfg ProviderConfig) (TokenProvider, error) {
	return NewRegistry().Create(ctx, cfg)
}

func newStaticFromConfig(cfg ProviderConfig) (TokenProvider, error) {
	if cfg.Token == "" {
		return nil, ErrMissingCredentials
	}
	return NewStaticTokenProvider(cfg.Token, cfg.TokenType), nil
}

func newServiceAccountFromConfig(cfg ProviderConfig) (TokenProvider, error) {
	key, err := ParseServiceAccountKey(cfg.CredentialsJSON)
	if err != nil {
		return nil, err
	}
	return NewServiceAccountProvider(ServiceAccountConfig{
		Key:        key,
		Audience:   cfg.Audience,
		Scopes:     cfg.Scopes,
		TokenURL:   cfg.URL,
		HTTPClient: cfg.HTTPClient,
	})
}

func newMetadataFromConfig(cfg ProviderConfig) (TokenProvider, error) {
	return NewMetadataProvider(MetadataConfig{
		URL:        cfg.URL,
		Headers:    cfg.Headers,
		Scopes:     cfg.Scopes,
		HTTPClient: cfg.HTTPClient,
	})
}

func newClientCredentialsFromConfig(cfg ProviderConfig) (TokenProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.URL == "" {
		return nil, fmt.Errorf("%w: client credentials need client ID, secret and token URL", ErrMissingCredentials)
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.URL,
		Scopes:       cfg.Scopes,
	}

	return TokenProviderFunc(func(ctx context.Context) (*Token, error) {
		if cfg.HTTPClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
		}
		return FromTokenSource(cc.TokenSource(ctx)).Token(ctx)
	}), nil
}

func newImpersonationFromConfig(cfg ProviderConfig) (TokenProvider, error) {
	return NewImpersonationProvider(ImpersonationConfig{
		Source:     cfg.Source,
		URL:        cfg.URL,
		Scopes:     cfg.Scopes,
		Lifetime:   cfg.Lifetime,
		HTTPClient: cfg.HTTPClient,
	})
}
