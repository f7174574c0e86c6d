package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// Sentinel errors for secret resolution.
var (
	// ErrNotFound indicates the provider has no secret for the reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrUnknownProvider indicates a reference names an unregistered provider.
	ErrUnknownProvider = errors.New("secret: provider not registered")

	// ErrEmptyValue indicates a strict resolver received an empty secret.
	ErrEmptyValue = errors.New("secret: empty value")

	// ErrInvalidRef indicates a malformed or unsafe reference.
	ErrInvalidRef = errors.New("secret: invalid reference")
)

// MapProvider serves secrets from an in-memory map.
type MapProvider struct {
	name   string
	values map[string]string
}

// NewMapProvider creates a provider named name over a copy of values.
func NewMapProvider(name string, values map[string]string) *MapProvider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &MapProvider{name: name, values: copied}
}

// Name implements Provider.
func (p *MapProvider) Name() string { return p.name }

// Resolve implements Provider.
func (p *MapProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.values[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s:%s", ErrNotFound, p.name, ref)
	}
	return v, nil
}

// FileProvider reads secrets from files under a directory, such as mounted
// secret volumes. A reference is a path relative to the directory. Trailing
// newlines are trimmed.
type FileProvider struct {
	name string
	dir  string
}

// NewFileProvider creates a provider named name rooted at dir.
func NewFileProvider(name, dir string) *FileProvider {
	return &FileProvider{name: name, dir: dir}
}

// Name implements Provider.
func (p *FileProvider) Name() string { return p.name }

// Resolve implements Provider.
func (p *FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidRef, ref, p.name)
	}

	data, err := os.ReadFile(filepath.Join(p.dir, ref))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s:%s", ErrNotFound, p.name, ref)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s:%s: %w", p.name, ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Ensure implementations satisfy Provider
var (
	_ Provider = (*MapProvider)(nil)
	_ Provider = (*FileProvider)(nil)
)
