// Package provider reads extraction outputs for a claim and flattens them into
// fact candidates. Providers are constructed through an explicit Registry built
// at process start; there is no package-level registration.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
)

// Provider reads extraction outputs produced upstream
type Provider interface {
	// Name identifies the provider in logs, cache keys, and rate limits
	Name() string

	// Collect returns every candidate reported for the claim across all runs.
	// A claim with no extraction output yields an empty slice and no error.
	Collect(ctx context.Context, claimID string) ([]model.FactCandidate, error)

	// ListClaims returns the ids of claims with extraction output, sorted
	ListClaims(ctx context.Context) ([]string, error)
}

// Fingerprinter is implemented by providers that can cheaply describe the
// current state of a claim's extraction outputs. Any change to the outputs
// must change the fingerprint.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, claimID string) (string, error)
}

// Factory builds a provider from configuration
type Factory func(cfg *model.Config) (Provider, error)

// Registry maps provider names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in providers
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	_ = r.Register("workspace", func(cfg *model.Config) (Provider, error) {
		return NewWorkspaceProvider(cfg.Workspace), nil
	})
	_ = r.Register(DriverSQLite, func(cfg *model.Config) (Provider, error) {
		return OpenDBProvider(DriverSQLite, cfg.Provider.DSN)
	})
	_ = r.Register(DriverPostgres, func(cfg *model.Config) (Provider, error) {
		return OpenDBProvider(DriverPostgres, cfg.Provider.DSN)
	})
	return r
}

// Register adds a factory under name
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("provider name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// New builds the provider named by cfg.Provider.Name
func (r *Registry) New(cfg *model.Config) (Provider, error) {
	name := cfg.Provider.Name
	if name == "" {
		name = "workspace"
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewConfigError("provider",
			fmt.Sprintf("unknown provider %q (supported: %s)", name, strings.Join(r.Names(), ", ")), nil)
	}

	p, err := factory(cfg)
	if err != nil {
		return nil, errors.NewConfigError("provider", fmt.Sprintf("create %s provider", name), err)
	}
	return p, nil
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
