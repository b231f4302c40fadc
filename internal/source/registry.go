package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"videoarchive/internal/model"
	"videoarchive/pkg/validator"
)

// Fetcher produces the raw captured payload for one owner. Implementations
// may fail; the orchestrator records the owner as errored and moves on.
type Fetcher interface {
	Fetch(ctx context.Context, ownerID string) (any, error)
}

// Registry maps owner ids to their payload fetchers. Owners are processed
// in registration order. Built once at startup; registration failures are
// fatal because they happen before any owner runs.
type Registry struct {
	fetchers map[string]Fetcher
	order    []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register adds an owner and its fetcher. Duplicate or invalid owner ids
// are rejected.
func (r *Registry) Register(ownerID string, f Fetcher) error {
	if err := validator.ValidateOwnerID(ownerID); err != nil {
		return err
	}
	if _, exists := r.fetchers[ownerID]; exists {
		return fmt.Errorf("owner %q registered twice", ownerID)
	}
	r.fetchers[ownerID] = f
	r.order = append(r.order, ownerID)
	return nil
}

// Lookup returns the fetcher for an owner
func (r *Registry) Lookup(ownerID string) (Fetcher, bool) {
	f, ok := r.fetchers[ownerID]
	return f, ok
}

// Owners returns the registered owner ids in registration order
func (r *Registry) Owners() []string {
	owners := make([]string, len(r.order))
	copy(owners, r.order)
	return owners
}

// FileFetcher reads a pre-captured payload from <Dir>/<owner>.json.
type FileFetcher struct {
	Dir string
}

// Fetch reads and decodes the owner's capture file
func (f *FileFetcher) Fetch(ctx context.Context, ownerID string) (any, error) {
	p := filepath.Join(f.Dir, ownerID+".json")
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", p, err)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode capture %s: %w", p, err)
	}
	return payload, nil
}

// HTTPFetcher retrieves a captured payload over HTTP, for captures hosted
// on another machine.
type HTTPFetcher struct {
	URL       string
	UserAgent string
	Client    *http.Client
}

// Fetch downloads and decodes the capture document
func (f *HTTPFetcher) Fetch(ctx context.Context, ownerID string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build capture request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch capture for %s: %w", ownerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch capture for %s: HTTP %d", ownerID, resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode capture for %s: %w", ownerID, err)
	}
	return payload, nil
}

// BuildRegistry wires the configured owners. Each entry is either a bare
// owner name, served from the capture directory, or name=<url> for a
// capture fetched over HTTP.
func BuildRegistry(src model.SourceConfig, dl model.DownloadConfig) (*Registry, error) {
	registry := NewRegistry()
	fileFetcher := &FileFetcher{Dir: src.Dir}
	httpClient := &http.Client{Timeout: time.Duration(dl.RequestTimeout) * time.Second}

	for _, entry := range src.Owners {
		name, url, hasURL := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)

		if !hasURL {
			if err := registry.Register(name, fileFetcher); err != nil {
				return nil, err
			}
			continue
		}

		url = strings.TrimSpace(url)
		if err := validator.ValidateSourceURL(url); err != nil {
			return nil, fmt.Errorf("owner %q: %w", name, err)
		}
		if err := registry.Register(name, &HTTPFetcher{
			URL:       url,
			UserAgent: dl.UserAgent,
			Client:    httpClient,
		}); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
