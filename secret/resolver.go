package secret

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// RefPrefix marks a value as a secret reference.
const RefPrefix = "secretref:"

// refPattern matches references embedded in a longer value.
var refPattern = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// Resolver replaces secret references in configuration values.
//
// A reference has the form secretref:<provider>:<ref>. A value that is
// exactly one reference resolves to the secret; references embedded in a
// longer value, such as "Bearer secretref:file:token", are substituted in
// place. Values without references are returned unchanged, and a nil
// *Resolver returns every value unchanged.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver over providers, keyed by Provider.Name.
// A strict resolver rejects secrets that resolve to the empty string.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p != nil {
			byName[p.Name()] = p
		}
	}
	return &Resolver{providers: byName, strict: strict}
}

// ResolveValue resolves the secret references in value.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	if r == nil || !strings.Contains(value, RefPrefix) {
		return value, nil
	}
	if provider, ref, ok := ParseSecretRef(value); ok {
		return r.lookup(ctx, provider, ref)
	}

	var (
		b    strings.Builder
		last int
	)
	for _, m := range refPattern.FindAllStringSubmatchIndex(value, -1) {
		secret, err := r.lookup(ctx, value[m[2]:m[3]], value[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		b.WriteString(value[last:m[0]])
		b.WriteString(secret)
		last = m[1]
	}
	b.WriteString(value[last:])
	return b.String(), nil
}

// ResolveMap returns a copy of input with every value resolved. A nil map
// yields nil.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		resolved, err := r.ResolveValue(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("secret: resolve %q: %w", key, err)
		}
		out[key] = resolved
	}
	return out, nil
}

// ParseSecretRef splits a value that is exactly one reference into its
// provider name and provider-specific ref. The ref may itself contain colons.
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, RefPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" || strings.ContainsAny(value, " \t\n") {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) lookup(ctx context.Context, name, ref string) (string, error) {
	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	value, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if value == "" && r.strict {
		return "", fmt.Errorf("%w: %s:%s", ErrEmptyValue, name, ref)
	}
	return value, nil
}
