package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MetadataConfig configures a MetadataProvider.
type MetadataConfig struct {
	// URL is the token endpoint of the instance metadata server. Required.
	URL string

	// Headers are sent with every request, such as a metadata-flavor marker.
	Headers map[string]string

	// Scopes, if set, are sent as a comma-separated "scopes" query parameter.
	Scopes []string

	// HTTPClient is used for requests.
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client

	// Now supplies the time used to compute expiry.
	// Default: time.Now
	Now func() time.Time
}

// MetadataProvider fetches tokens from a workload metadata endpoint that
// answers GET requests with an OAuth2 token response.
type MetadataProvider struct {
	config MetadataConfig
}

// NewMetadataProvider creates a metadata endpoint provider.
func NewMetadataProvider(config MetadataConfig) (*MetadataProvider, error) {
	if config.URL == "" {
		return nil, ErrMissingCredentials
	}
	config.HTTPClient = defaultHTTPClient(config.HTTPClient)
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MetadataProvider{config: config}, nil
}

// Token implements TokenProvider.
func (p *MetadataProvider) Token(ctx context.Context) (*Token, error) {
	endpoint := p.config.URL
	if len(p.config.Scopes) > 0 {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("scopes", strings.Join(p.config.Scopes, ","))
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	req, err := newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	now := p.config.Now()
	var resp tokenResponse
	if err := doTokenRequest(p.config.HTTPClient, req, &resp); err != nil {
		return nil, err
	}
	return resp.token(now)
}

// Ensure MetadataProvider implements TokenProvider
var _ TokenProvider = (*MetadataProvider)(nil)
